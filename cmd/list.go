package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/output"
	"github.com/antopolskiy/chatmode-kit/internal/shortcut"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed chatmode profiles",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(_ *cobra.Command, _ []string) error {
	env, err := resolveEnv()
	if err != nil {
		return err
	}

	names, err := shortcut.Profiles(filepath.Join(env.BaseDir, manifest.ChatmodesDir))
	if err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		if names == nil {
			names = []string{}
		}
		return output.JSON(os.Stdout, names)
	}
	output.ProfileList(os.Stdout, names)
	return nil
}
