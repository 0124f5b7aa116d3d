// Package prereq checks that the external tools the installer relies on
// are available on PATH.
package prereq

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
)

// versionTimeout bounds the best-effort `--version` probe per tool.
const versionTimeout = 3 * time.Second

// Tool is an external program the installer depends on. Commands lists the
// accepted executable names in preference order.
type Tool struct {
	Name     string   `json:"name"`
	Commands []string `json:"commands"`
	Required bool     `json:"required"`
	Hint     string   `json:"hint,omitempty"`

	// Builtin marks a capability the binary provides itself; it is always found.
	Builtin bool `json:"builtin,omitempty"`
}

// Result is the outcome of checking one tool.
type Result struct {
	Tool    Tool   `json:"tool"`
	Found   bool   `json:"found"`
	Command string `json:"command,omitempty"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

// Missing reports whether a required tool was not found.
func (r Result) Missing() bool { return r.Tool.Required && !r.Found }

// LookPathFunc finds an executable on PATH.
type LookPathFunc func(file string) (string, error)

// RunFunc runs a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Checker looks tools up. Zero fields fall back to exec.LookPath and a real
// command runner.
type Checker struct {
	LookPath LookPathFunc
	Run      RunFunc
}

// Editor is the VS Code launcher requirement. command and alternatives come
// from configuration.
func Editor(command string, alternatives []string) Tool {
	cmds := append([]string{command}, alternatives...)
	return Tool{
		Name:     "editor",
		Commands: cmds,
		Required: true,
		Hint:     "install VS Code and run \"Shell Command: Install 'code' command in PATH\"",
	}
}

// Fetcher is the download client requirement. The built-in HTTP client is
// always available; curl must be on PATH when selected.
func Fetcher(client string) Tool {
	if client == "curl" {
		return Tool{
			Name:     "curl",
			Commands: []string{"curl"},
			Required: true,
			Hint:     "install curl or set fetch.client to http",
		}
	}
	return Tool{Name: "http", Required: true, Builtin: true}
}

// Git is optional; without it the bundled update scripts cannot pull.
func Git() Tool {
	return Tool{
		Name:     "git",
		Commands: []string{"git"},
		Hint:     "install git to use the update scripts",
	}
}

// Check resolves every tool. It never fails; see Missing and Err.
func (c Checker) Check(ctx context.Context, tools []Tool) []Result {
	results := make([]Result, 0, len(tools))
	for _, t := range tools {
		results = append(results, c.checkOne(ctx, t))
	}
	return results
}

func (c Checker) checkOne(ctx context.Context, t Tool) Result {
	r := c.Locate(t)
	if r.Found && !t.Builtin {
		r.Version = c.version(ctx, r.Path)
	}
	return r
}

// Locate finds the first available command of t without probing its
// version.
func (c Checker) Locate(t Tool) Result {
	r := Result{Tool: t}
	if t.Builtin {
		r.Found = true
		return r
	}
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, name := range t.Commands {
		if name == "" {
			continue
		}
		path, err := lookPath(name)
		if err != nil {
			continue
		}
		r.Found = true
		r.Command = name
		r.Path = path
		return r
	}
	return r
}

func (c Checker) version(ctx context.Context, path string) string {
	run := c.Run
	if run == nil {
		run = runCommand
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := run(ctx, path, "--version")
	if err != nil {
		return ""
	}
	return firstLine(out)
}

// Err returns a TOOL_MISSING error naming every missing required tool, or
// nil when all required tools were found.
func Err(results []Result) error {
	var names, hints []string
	for _, r := range results {
		if !r.Missing() {
			continue
		}
		names = append(names, fmt.Sprintf("%s (%s)", r.Tool.Name, strings.Join(r.Tool.Commands, ", ")))
		if r.Tool.Hint != "" {
			hints = append(hints, r.Tool.Hint)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return clierr.Newf(clierr.ToolMissing, "required tool not found: %s", strings.Join(names, "; ")).
		WithDetails(map[string]any{"missing": names, "hints": hints})
}

func firstLine(b []byte) string {
	line, _, _ := bytes.Cut(bytes.TrimSpace(b), []byte("\n"))
	return strings.TrimSpace(string(line))
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // tool paths come from LookPath
}
