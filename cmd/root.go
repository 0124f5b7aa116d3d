// Package cmd implements the chatmode-kit CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/config"
	"github.com/antopolskiy/chatmode-kit/internal/output"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagJSON    bool
	flagNoColor bool
	flagDir     string
	flagConfig  string
	flagVerbose bool
)

// logger is the diagnostic logger; a no-op unless --verbose is set.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "chatmode-kit",
	Short: "Install chatmode profiles and instructions for VS Code",
	Long: `chatmode-kit downloads a curated set of chatmode profiles, instruction
guides and helper scripts into your VS Code configuration directory,
proposes editor settings without touching your existing settings file,
and generates a shortcut that opens a profile by name.`,
	Version:           version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "install directory (default ~/.vscode/chatmode-kit)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log diagnostics to stderr")
}

func setup(_ *cobra.Command, _ []string) error {
	if flagNoColor || os.Getenv("NO_COLOR") != "" {
		output.DisableColor()
	}
	if !flagVerbose {
		logger = zap.NewNop()
		return nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	logger = l
	return nil
}

// Execute runs the root command. Ctrl-C cancels the command's context so
// in-flight downloads stop.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	_, err := rootCmd.ExecuteContextC(ctx)
	stop()
	if err == nil {
		return
	}

	// SilentError: exit with its code, no output.
	var silent *clierr.SilentError
	if errors.As(err, &silent) {
		os.Exit(silent.Code)
	}

	if outputFormat() == output.FormatJSON {
		var cliErr *clierr.Error
		if errors.As(err, &cliErr) {
			output.JSONError(os.Stdout, cliErr.Code, cliErr.Message, cliErr.Details)
			os.Exit(cliErr.ExitCode())
		}
		// Unknown errors are reported as INTERNAL_ERROR.
		output.JSONError(os.Stdout, clierr.InternalError, err.Error(), nil)
		os.Exit(2) //nolint:mnd // exit code 2 for internal errors
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(os.Stderr, "Hint:", hint)
	}
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		os.Exit(cliErr.ExitCode())
	}
	os.Exit(2) //nolint:mnd // exit code 2 for internal errors
}

// errorHint returns the remediation hint carried in a CLI error's details.
func errorHint(err error) string {
	var cliErr *clierr.Error
	if !errors.As(err, &cliErr) {
		return ""
	}
	hint, _ := cliErr.Details["hint"].(string)
	return hint
}

// loadConfig locates and loads the config file. Invalid configs become
// CONFIG_INVALID errors.
func loadConfig() (*config.Config, error) {
	path, err := config.ResolvePath(flagConfig, os.Getenv)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, configError(path, err)
	}
	logger.Debug("config loaded", zap.String("path", path))
	return cfg, nil
}

func configError(path string, err error) error {
	if errors.Is(err, config.ErrInvalid) {
		return clierr.New(clierr.ConfigInvalid, err.Error()).
			WithDetails(map[string]any{"path": path})
	}
	return err
}

// resolveEnv detects the platform and install paths, applying --dir.
func resolveEnv() (platform.Env, error) {
	env := platform.Resolve(runtime.GOOS, os.Getenv)
	if flagDir != "" {
		abs, err := filepath.Abs(flagDir)
		if err != nil {
			return env, fmt.Errorf("resolving --dir: %w", err)
		}
		env.BaseDir = abs
	}
	logger.Debug("environment resolved",
		zap.Stringer("os", env.OS), zap.String("base_dir", env.BaseDir), zap.String("settings", env.SettingsPath))
	return env, nil
}

// outputFormat returns the detected output format from flags/env.
func outputFormat() output.Format {
	return output.Detect(flagJSON)
}

// newStatus returns the progress reporter for the current output format.
func newStatus() *output.Status {
	if outputFormat() == output.FormatJSON {
		return output.NewQuietStatus()
	}
	return output.NewStatus(os.Stdout)
}
