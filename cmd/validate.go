package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/installer"
	"github.com/antopolskiy/chatmode-kit/internal/output"
	"github.com/antopolskiy/chatmode-kit/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check installed file counts against the minimums",
	Long: `Counts installed chatmodes, instructions and scripts and compares them with
the configured thresholds. Exits non-zero when any category falls short.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := resolveEnv()
	if err != nil {
		return err
	}

	res := validate.Run(env.BaseDir, env.OS, cfg.ValidatorThresholds())

	if outputFormat() == output.FormatJSON {
		if err := output.JSON(os.Stdout, res); err != nil {
			return err
		}
		if !res.Passed {
			return &clierr.SilentError{Code: 1}
		}
		return nil
	}

	output.CountsTable(os.Stdout, res)
	if !res.Passed {
		return installer.ValidationError(res, nil)
	}
	output.Messagef(os.Stdout, "\nInstallation is valid.")
	return nil
}
