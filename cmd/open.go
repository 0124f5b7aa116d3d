package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/output"
	"github.com/antopolskiy/chatmode-kit/internal/prereq"
	"github.com/antopolskiy/chatmode-kit/internal/shortcut"
)

var openCmd = &cobra.Command{
	Use:   "open <profile>",
	Short: "Open a chatmode profile in the editor",
	Long: `Opens <install dir>/chatmodes/<profile>.chatmode.md with the configured
editor command. Without a profile, or with an unknown one, lists the
available profiles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOpen,
}

// launchFn starts the editor. Replaceable in tests.
var launchFn shortcut.Launcher = shortcut.ExecLauncher

// lookPathFn finds the editor. Replaceable in tests.
var lookPathFn prereq.LookPathFunc

func init() {
	rootCmd.AddCommand(openCmd)
}

type openResult struct {
	Profile string `json:"profile"`
	Path    string `json:"path"`
	Editor  string `json:"editor"`
}

func runOpen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := resolveEnv()
	if err != nil {
		return err
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	}
	path, err := shortcut.Resolve(filepath.Join(env.BaseDir, manifest.ChatmodesDir), name)
	if err != nil {
		return err
	}

	found := prereq.Checker{LookPath: lookPathFn}.Locate(prereq.Editor(cfg.Editor.Command, cfg.Editor.Alternatives))
	if err := prereq.Err([]prereq.Result{found}); err != nil {
		return err
	}
	editor := found.Path

	logger.Debug("opening profile", zap.String("path", path), zap.String("editor", editor))
	if err := launchFn(cmd.Context(), editor, path); err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, openResult{Profile: name, Path: path, Editor: editor})
	}
	return nil
}
