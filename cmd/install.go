package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/config"
	"github.com/antopolskiy/chatmode-kit/internal/fetch"
	"github.com/antopolskiy/chatmode-kit/internal/installer"
	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/output"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
	"github.com/antopolskiy/chatmode-kit/internal/prereq"
	"github.com/antopolskiy/chatmode-kit/internal/settings"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download profiles and instructions and configure VS Code",
	Long: `Downloads every file in the manifest into the install directory, writes
editor settings (or a recommended-settings.json next to an existing settings
file), validates the result and generates the chatmode shortcut script.

Re-running is safe: files are refreshed in place and an existing settings
file is never modified.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().Bool("force", false, "skip the confirmation prompt")
	installCmd.Flags().String("base-url", "", "remote source base URL")
	installCmd.Flags().String("client", "", "download client (http or curl)")
	installCmd.Flags().Int("concurrency", 0, "parallel downloads (1 = sequential)")
	installCmd.Flags().Int("attempts", 0, "attempts per file")
	installCmd.Flags().String("settings", "", "VS Code settings.json path")
	installCmd.Flags().Bool("skip-settings", false, "do not write editor settings")
	rootCmd.AddCommand(installCmd)
}

// toolChecker resolves external tools for install and doctor. Replaceable
// in tests.
var toolChecker = prereq.Checker{}

// interactiveFn reports whether a prompt can be shown. Replaceable in tests.
var interactiveFn = output.Interactive

// installResult is the JSON document printed by install.
type installResult struct {
	*installer.Report
	Error *output.ErrorResponse `json:"error,omitempty"`
}

func runInstall(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyInstallFlags(cmd, cfg); err != nil {
		return err
	}
	env, err := resolveEnv()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("settings"); v != "" {
		abs, absErr := filepath.Abs(v)
		if absErr != nil {
			return fmt.Errorf("resolving --settings: %w", absErr)
		}
		env.SettingsPath = abs
	}
	skipSettings, _ := cmd.Flags().GetBool("skip-settings")

	force, _ := cmd.Flags().GetBool("force")
	if !force && outputFormat() != output.FormatJSON && interactiveFn() {
		if !confirmFn("Install chatmode-kit?", installPlan(cfg, env, skipSettings)) {
			output.Messagef(os.Stdout, "Install canceled.")
			return nil
		}
	}

	client, err := fetch.New(cfg.Fetch.Client, cfg.Timeouts())
	if err != nil {
		return clierr.New(clierr.InvalidInput, err.Error())
	}

	status := newStatus()
	in := &installer.Installer{
		Env:          env,
		Config:       cfg,
		Manifest:     manifest.Default(),
		Client:       client,
		Checker:      toolChecker,
		Merger:       settings.Merger{},
		SkipSettings: skipSettings,
		Version:      version,
		Logger:       logger,
		Reporter:     status,
	}
	rep, runErr := in.Run(cmd.Context())

	if outputFormat() == output.FormatJSON {
		return printInstallJSON(rep, runErr)
	}
	printInstallSummary(rep, status)
	return runErr
}

// applyInstallFlags overrides config values with explicitly set flags and
// re-validates the result.
func applyInstallFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Source.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("client") {
		cfg.Fetch.Client, _ = flags.GetString("client")
	}
	if flags.Changed("concurrency") {
		cfg.Fetch.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("attempts") {
		cfg.Fetch.Attempts, _ = flags.GetInt("attempts")
	}
	if err := cfg.Validate(); err != nil {
		return clierr.New(clierr.InvalidInput, err.Error())
	}
	return nil
}

func installPlan(cfg *config.Config, env platform.Env, skipSettings bool) []string {
	lines := []string{
		"source:   " + cfg.Source.BaseURL,
		"install:  " + env.BaseDir,
	}
	if skipSettings {
		lines = append(lines, "settings: skipped")
	} else {
		lines = append(lines, "settings: "+env.SettingsPath+" (never overwritten)")
	}
	return lines
}

func printInstallJSON(rep *installer.Report, runErr error) error {
	res := installResult{Report: rep}
	if runErr != nil {
		var cliErr *clierr.Error
		if errors.As(runErr, &cliErr) {
			res.Error = &output.ErrorResponse{Error: cliErr.Message, Code: cliErr.Code, Details: cliErr.Details}
		} else {
			res.Error = &output.ErrorResponse{Error: runErr.Error(), Code: clierr.InternalError}
		}
	}
	if err := output.JSON(os.Stdout, res); err != nil {
		return err
	}
	if runErr != nil {
		return &clierr.SilentError{Code: exitCode(runErr)}
	}
	return nil
}

func printInstallSummary(rep *installer.Report, status *output.Status) {
	if rep == nil {
		return
	}
	status.Section("Summary")
	if rep.Validation != nil {
		output.CountsTable(os.Stdout, *rep.Validation)
		fmt.Fprintln(os.Stdout)
	}
	if rep.Settings != nil && rep.Settings.Action == settings.Recommended {
		output.Messagef(os.Stdout, "Your settings were left unchanged. Merge %s into %s.",
			rep.Settings.RecommendedPath, rep.Settings.SettingsPath)
	}
	if rep.Shortcut != "" {
		output.Messagef(os.Stdout, "Open a profile with: %s <profile>  (or: chatmode-kit open <profile>)", rep.Shortcut)
	}
	if !rep.Aborted {
		warnings, failures := status.Warnings(), status.Failures()
		switch {
		case warnings == 0 && failures == 0:
			output.Messagef(os.Stdout, "Installed successfully.")
		case failures == 0:
			output.Messagef(os.Stdout, "Installed with %d warning(s).", warnings)
		default:
			output.Messagef(os.Stdout, "Installed with %d warning(s) and %d failure(s).", warnings, failures)
		}
	}
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		return cliErr.ExitCode()
	}
	return 2 //nolint:mnd // exit code 2 for internal errors
}
