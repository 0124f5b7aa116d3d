package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/config"
	"github.com/antopolskiy/chatmode-kit/internal/fetch"
	"github.com/antopolskiy/chatmode-kit/internal/filelock"
	"github.com/antopolskiy/chatmode-kit/internal/installer"
	"github.com/antopolskiy/chatmode-kit/internal/output"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
	"github.com/antopolskiy/chatmode-kit/internal/prereq"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the environment before installing",
	Long: `Checks the editor launcher, download client and git, probes connectivity
to the remote source once, and reports on the install directory and the
settings file. Exits non-zero when a check fails.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

// newProber builds the connectivity prober. Replaceable in tests.
var newProber = func(cfg *config.Config) (fetch.Prober, error) {
	return fetch.New(cfg.Fetch.Client, cfg.Timeouts())
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// checkStatus is the outcome of one doctor check.
type checkStatus string

const (
	checkPass checkStatus = "pass"
	checkWarn checkStatus = "warn"
	checkFail checkStatus = "fail"
)

type doctorCheck struct {
	Name    string      `json:"name"`
	Status  checkStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

type doctorReport struct {
	Platform platform.OS   `json:"platform"`
	Checks   []doctorCheck `json:"checks"`
	Passed   int           `json:"passed"`
	Warned   int           `json:"warned"`
	Failed   int           `json:"failed"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := resolveEnv()
	if err != nil {
		return err
	}

	rep := doctorReport{Platform: env.OS}
	rep.Checks = append(rep.Checks, toolChecks(cmd.Context(), cfg)...)
	rep.Checks = append(rep.Checks, probeCheck(cmd.Context(), cfg))
	rep.Checks = append(rep.Checks, installDirCheck(env.BaseDir), settingsCheck(env.SettingsPath))
	for _, c := range rep.Checks {
		switch c.Status {
		case checkPass:
			rep.Passed++
		case checkWarn:
			rep.Warned++
		case checkFail:
			rep.Failed++
		}
	}

	if outputFormat() == output.FormatJSON {
		if err := output.JSON(os.Stdout, rep); err != nil {
			return err
		}
	} else {
		printDoctor(rep)
	}
	if rep.Failed > 0 {
		return &clierr.SilentError{Code: 1}
	}
	return nil
}

func toolChecks(ctx context.Context, cfg *config.Config) []doctorCheck {
	tools := []prereq.Tool{
		prereq.Editor(cfg.Editor.Command, cfg.Editor.Alternatives),
		prereq.Fetcher(cfg.Fetch.Client),
		prereq.Git(),
	}
	var checks []doctorCheck
	for _, r := range toolChecker.Check(ctx, tools) {
		c := doctorCheck{Name: r.Tool.Name}
		switch {
		case r.Found && r.Tool.Builtin:
			c.Status, c.Message = checkPass, "built-in HTTP client"
		case r.Found:
			c.Status = checkPass
			c.Message = strings.TrimSpace(r.Path + " " + r.Version)
		case r.Tool.Required:
			c.Status = checkFail
			c.Message = "not found (tried " + strings.Join(r.Tool.Commands, ", ") + ")"
			c.Fix = r.Tool.Hint
		default:
			c.Status, c.Message, c.Fix = checkWarn, "not found", r.Tool.Hint
		}
		checks = append(checks, c)
	}
	return checks
}

func probeCheck(ctx context.Context, cfg *config.Config) doctorCheck {
	c := doctorCheck{Name: "network"}
	url := cfg.Source.ProbeURL
	if url == "" {
		url = cfg.Source.BaseURL
	}
	p, err := newProber(cfg)
	if err != nil {
		c.Status, c.Message = checkFail, err.Error()
		return c
	}
	if err := p.Probe(ctx, url); err != nil {
		c.Status = checkFail
		c.Message = fmt.Sprintf("cannot reach %s: %v", url, err)
		c.Fix = "check your connection or proxy settings"
		return c
	}
	c.Status, c.Message = checkPass, url+" is reachable"
	return c
}

func installDirCheck(baseDir string) doctorCheck {
	c := doctorCheck{Name: "install dir"}
	info, err := os.Stat(baseDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.Status = checkWarn
		c.Message = baseDir + " does not exist yet"
		c.Fix = "run `chatmode-kit install`"
		return c
	case err != nil:
		c.Status, c.Message = checkFail, err.Error()
		return c
	case !info.IsDir():
		c.Status = checkFail
		c.Message = baseDir + " exists and is not a directory"
		return c
	}

	held, err := filelock.Held(filepath.Join(baseDir, installer.LockName))
	if err == nil && held {
		c.Status, c.Message = checkWarn, "an install is currently running in "+baseDir
		return c
	}
	rec, err := installer.ReadReceipt(baseDir)
	if err != nil {
		c.Status = checkWarn
		c.Message = baseDir + " exists but has no install receipt"
		c.Fix = "run `chatmode-kit install`"
		return c
	}
	c.Status = checkPass
	c.Message = fmt.Sprintf("%s (%d files, installed %s)", baseDir, len(rec.Files), rec.InstalledAt.Format("2006-01-02 15:04"))
	return c
}

func settingsCheck(path string) doctorCheck {
	c := doctorCheck{Name: "settings"}
	if _, err := os.Stat(path); err != nil {
		c.Status = checkPass
		c.Message = path + " does not exist; install will create it"
		return c
	}
	c.Status = checkPass
	c.Message = path + " exists; install will write recommended-settings.json beside it"
	return c
}

func printDoctor(rep doctorReport) {
	status := output.NewStatus(os.Stdout)
	output.Heading(os.Stdout, "chatmode-kit doctor ("+rep.Platform.String()+")")
	for _, c := range rep.Checks {
		line := c.Name + ": " + c.Message
		switch c.Status {
		case checkPass:
			status.OK("%s", line)
		case checkWarn:
			status.Warn("%s", line)
		case checkFail:
			status.Fail("%s", line)
		}
		if c.Status != checkPass && c.Fix != "" {
			output.Messagef(os.Stdout, "     fix: %s", c.Fix)
		}
	}
	output.Messagef(os.Stdout, "\n%d passed, %d warnings, %d failed", rep.Passed, rep.Warned, rep.Failed)
}
