package cmd

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/antopolskiy/chatmode-kit/internal/filelock"
	"github.com/antopolskiy/chatmode-kit/internal/installer"
	"github.com/antopolskiy/chatmode-kit/internal/output"
	"github.com/antopolskiy/chatmode-kit/internal/validate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the last install left on disk",
	Long: `Prints the install receipt written by the last successful install and
compares it with the files currently present.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusResult struct {
	BaseDir    string             `json:"base_dir"`
	Installing bool               `json:"installing"`
	Receipt    *installer.Receipt `json:"receipt"`
	Current    validate.Counts    `json:"current"`
	Missing    []string           `json:"missing,omitempty"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	env, err := resolveEnv()
	if err != nil {
		return err
	}

	rec, err := installer.ReadReceipt(env.BaseDir)
	if err != nil {
		return err
	}
	held, _ := filelock.Held(filepath.Join(env.BaseDir, installer.LockName))

	res := statusResult{
		BaseDir:    env.BaseDir,
		Installing: held,
		Receipt:    rec,
		Current:    validate.Count(env.BaseDir, env.OS),
	}
	for _, f := range rec.Files {
		if _, err := os.Stat(filepath.Join(env.BaseDir, filepath.FromSlash(f.Path))); err != nil {
			res.Missing = append(res.Missing, f.Path)
		}
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, res)
	}

	output.Heading(os.Stdout, "chatmode-kit "+rec.Version)
	output.Field(os.Stdout, "Directory", res.BaseDir)
	output.Field(os.Stdout, "Installed", rec.InstalledAt.Local().Format("2006-01-02 15:04"))
	output.Field(os.Stdout, "Platform", rec.Platform)
	output.Field(os.Stdout, "Source", rec.BaseURL)
	output.Field(os.Stdout, "Settings", rec.Settings)
	output.Field(os.Stdout, "Files", strconv.Itoa(len(rec.Files)))
	output.Field(os.Stdout, "Chatmodes", strconv.Itoa(res.Current.Chatmodes))
	output.Field(os.Stdout, "Instructions", strconv.Itoa(res.Current.Instructions))
	output.Field(os.Stdout, "Scripts", strconv.Itoa(res.Current.Scripts))
	if held {
		output.Messagef(os.Stdout, "\nAn install is running right now.")
	}
	if len(res.Missing) > 0 {
		output.Messagef(os.Stdout, "\n%d file(s) from the last install are missing:", len(res.Missing))
		for _, m := range res.Missing {
			output.Messagef(os.Stdout, "  %s", m)
		}
		output.Messagef(os.Stdout, "Run `chatmode-kit install` to restore them.")
	}
	return nil
}
