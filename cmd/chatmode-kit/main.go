// chatmode-kit installs chatmode profiles and instructions for VS Code.
package main

import "github.com/antopolskiy/chatmode-kit/cmd"

func main() {
	cmd.Execute()
}
