// Package installer drives the provisioning pipeline: detect the
// environment, check prerequisites, create directories, acquire files,
// propose settings, validate and generate the shortcut.
package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/antopolskiy/chatmode-kit/internal/acquire"
	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/config"
	"github.com/antopolskiy/chatmode-kit/internal/fetch"
	"github.com/antopolskiy/chatmode-kit/internal/filelock"
	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
	"github.com/antopolskiy/chatmode-kit/internal/prereq"
	"github.com/antopolskiy/chatmode-kit/internal/provision"
	"github.com/antopolskiy/chatmode-kit/internal/settings"
	"github.com/antopolskiy/chatmode-kit/internal/shortcut"
	"github.com/antopolskiy/chatmode-kit/internal/validate"
)

// LockName is the lock file held in the base dir for the whole run.
const LockName = ".chatmode-kit.lock"

// Phase names a pipeline state.
type Phase string

// Pipeline phases in execution order.
const (
	PhaseStart             Phase = "start"
	PhaseDetectEnv         Phase = "detect_env"
	PhaseCheckPrereqs      Phase = "check_prereqs"
	PhaseMakeDirs          Phase = "make_dirs"
	PhaseAcquire           Phase = "acquire"
	PhaseMergeSettings     Phase = "merge_settings"
	PhaseValidate          Phase = "validate"
	PhaseGenerateShortcuts Phase = "generate_shortcuts"
	PhaseDone              Phase = "done"
)

// Reporter receives human-readable progress.
type Reporter interface {
	acquire.Reporter
	Info(format string, args ...any)
	Section(title string)
}

// Report is the aggregate result of a run. Phase is the last phase entered;
// when Aborted is set it is the phase that failed.
type Report struct {
	Phase   Phase `json:"phase"`
	Aborted bool  `json:"aborted"`

	Platform     platform.OS `json:"platform"`
	BaseDir      string      `json:"base_dir"`
	BaseURL      string      `json:"base_url"`
	SettingsPath string      `json:"settings_path"`

	Prereqs       []prereq.Result   `json:"prereqs,omitempty"`
	Editor        string            `json:"editor,omitempty"`
	CreatedDirs   []string          `json:"created_dirs,omitempty"`
	Acquisition   *acquire.Summary  `json:"acquisition,omitempty"`
	Settings      *settings.Outcome `json:"settings,omitempty"`
	SettingsError string            `json:"settings_error,omitempty"`
	Validation    *validate.Result  `json:"validation,omitempty"`
	Shortcut      string            `json:"shortcut,omitempty"`
	Receipt       string            `json:"receipt,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// Installer runs the pipeline once. Env, Config, Manifest and Client are
// required.
type Installer struct {
	Env      platform.Env
	Config   *config.Config
	Manifest *manifest.Manifest
	Client   fetch.Client
	Checker  prereq.Checker
	Merger   settings.Merger

	SkipSettings bool
	Version      string

	// Now stamps the receipt. Defaults to time.Now.
	Now      func() time.Time
	Logger   *zap.Logger
	Reporter Reporter
}

type step struct {
	phase Phase
	title string
	run   func(context.Context, *Report) error
}

// Run executes every phase in order. Fatal phases (prerequisites,
// directories, validation) stop the run and return a *clierr.Error; all
// other failures become warnings in the report. The report is returned
// even when err is non-nil.
func (in *Installer) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		Phase:        PhaseStart,
		Platform:     in.Env.OS,
		BaseDir:      in.Env.BaseDir,
		BaseURL:      in.Config.Source.BaseURL,
		SettingsPath: in.Env.SettingsPath,
	}
	log := in.logger()
	log.Debug("install starting", zap.String("base_dir", rep.BaseDir), zap.Stringer("platform", rep.Platform))

	pre := []step{
		{PhaseDetectEnv, "Environment", in.detectEnv},
		{PhaseCheckPrereqs, "Prerequisites", in.checkPrereqs},
		{PhaseMakeDirs, "Directories", in.makeDirs},
	}
	if err := in.runSteps(ctx, rep, pre); err != nil {
		return rep, err
	}

	unlock, err := in.lock(ctx, rep.BaseDir)
	if err != nil {
		rep.Aborted = true
		return rep, err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn("releasing install lock", zap.Error(err))
		}
	}()

	post := []step{
		{PhaseAcquire, "Downloading files", in.acquire},
		{PhaseMergeSettings, "Editor settings", in.mergeSettings},
		{PhaseValidate, "Validation", in.validate},
		{PhaseGenerateShortcuts, "Shortcut", in.generateShortcuts},
		{PhaseDone, "", in.done},
	}
	if err := in.runSteps(ctx, rep, post); err != nil {
		return rep, err
	}
	log.Debug("install finished", zap.Int("warnings", len(rep.Warnings)))
	return rep, nil
}

func (in *Installer) runSteps(ctx context.Context, rep *Report, steps []step) error {
	for _, s := range steps {
		rep.Phase = s.phase
		if s.title != "" {
			in.reporter().Section(s.title)
		}
		if err := s.run(ctx, rep); err != nil {
			rep.Aborted = true
			in.logger().Debug("phase aborted", zap.String("phase", string(s.phase)), zap.Error(err))
			return err
		}
	}
	return nil
}

func (in *Installer) lock(ctx context.Context, baseDir string) (filelock.Unlock, error) {
	path := filepath.Join(baseDir, LockName)
	unlock, err := filelock.TryLock(path)
	if errors.Is(err, filelock.ErrLocked) {
		in.reporter().Info("another install is running in %s; waiting", baseDir)
		unlock, err = filelock.Lock(ctx, path)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return nil, clierr.New(clierr.Canceled, "install interrupted while waiting for another install")
	}
	if err != nil {
		return nil, clierr.Newf(clierr.PermissionDenied, "cannot lock %s: %v", path, err)
	}
	return unlock, nil
}

func (in *Installer) detectEnv(_ context.Context, rep *Report) error {
	r := in.reporter()
	if rep.BaseDir == "" || !filepath.IsAbs(rep.BaseDir) {
		return clierr.Newf(clierr.InvalidInput,
			"cannot determine the install directory %q (set HOME or pass --dir)", rep.BaseDir)
	}
	if rep.Platform == platform.Unknown {
		in.warn(rep, "unrecognized platform; using Unix conventions")
	} else {
		r.OK("platform: %s", rep.Platform)
	}
	r.Info("install directory: %s", rep.BaseDir)
	r.Info("settings file: %s", rep.SettingsPath)
	return nil
}

func (in *Installer) checkPrereqs(ctx context.Context, rep *Report) error {
	cfg := in.Config
	tools := []prereq.Tool{
		prereq.Editor(cfg.Editor.Command, cfg.Editor.Alternatives),
		prereq.Fetcher(cfg.Fetch.Client),
		prereq.Git(),
	}
	rep.Prereqs = in.Checker.Check(ctx, tools)

	r := in.reporter()
	for _, res := range rep.Prereqs {
		switch {
		case res.Found && res.Tool.Builtin:
			r.OK("%s: built in", res.Tool.Name)
		case res.Found:
			r.OK("%s: %s %s", res.Tool.Name, res.Path, res.Version)
			if res.Tool.Name == "editor" {
				rep.Editor = res.Command
			}
		case res.Tool.Required:
			r.Fail("%s not found (tried %s)", res.Tool.Name, strings.Join(res.Tool.Commands, ", "))
		default:
			in.warn(rep, "%s not found: %s", res.Tool.Name, res.Tool.Hint)
		}
	}
	return prereq.Err(rep.Prereqs)
}

func (in *Installer) makeDirs(_ context.Context, rep *Report) error {
	created, err := provision.Ensure(rep.BaseDir, manifest.Subdirs)
	rep.CreatedDirs = created
	if err != nil {
		in.reporter().Fail("%v", err)
		return err
	}
	if len(created) == 0 {
		in.reporter().OK("directories already exist")
	}
	for _, d := range created {
		in.reporter().OK("created %s", d)
	}
	return nil
}

func (in *Installer) acquire(ctx context.Context, rep *Report) error {
	cfg := in.Config
	entries := in.Manifest.For(rep.Platform)
	a := &acquire.Acquirer{
		Fetcher:          in.Client,
		Prober:           in.Client,
		Policy:           acquire.Policy{Attempts: cfg.Fetch.Attempts, Delay: cfg.RetryDelay()},
		Concurrency:      cfg.Fetch.Concurrency,
		SuccessThreshold: cfg.Thresholds.Acquired,
		ProbeURL:         cfg.Source.ProbeURL,
		OS:               rep.Platform,
		Logger:           in.logger(),
		Reporter:         in.reporter(),
	}
	sum := a.Run(ctx, cfg.Source.BaseURL, rep.BaseDir, entries)
	rep.Acquisition = &sum

	if err := ctx.Err(); err != nil {
		return clierr.New(clierr.Canceled, "install interrupted").
			WithDetails(map[string]any{"acquired": sum.Succeeded})
	}

	r := in.reporter()
	r.Info("%d of %d files acquired", sum.Succeeded, len(entries))
	if p := sum.Probe; p != nil {
		if p.Reachable {
			in.warn(rep, "only %d files acquired but %s is reachable; check source.base_url (%s)",
				sum.Succeeded, p.URL, cfg.Source.BaseURL)
		} else {
			r.Fail("cannot reach %s: the network appears to be down", p.URL)
		}
	}
	if sum.Failed > 0 {
		in.warn(rep, "%d files failed to download", sum.Failed)
	}
	return nil
}

func (in *Installer) mergeSettings(_ context.Context, rep *Report) error {
	r := in.reporter()
	if in.SkipSettings {
		r.Info("skipped (--skip-settings)")
		return nil
	}

	f := settings.DefaultFragment(
		filepath.Join(rep.BaseDir, manifest.ChatmodesDir),
		filepath.Join(rep.BaseDir, manifest.InstructionsDir),
	)
	out, err := in.Merger.Apply(rep.SettingsPath, f)
	if err != nil {
		rep.SettingsError = err.Error()
		in.warn(rep, "settings not written: %v", err)
		return nil
	}
	rep.Settings = &out

	switch out.Action {
	case settings.Created:
		r.OK("created %s", out.SettingsPath)
	case settings.Recommended:
		in.warn(rep, "%s already exists and was left unchanged", out.SettingsPath)
		r.Info("merge the keys from %s into your settings", out.RecommendedPath)
		if out.BackupPath != "" {
			r.OK("backup written to %s", out.BackupPath)
		}
	}
	if out.BackupErr != nil {
		in.warn(rep, "settings backup failed: %v", out.BackupErr)
	}
	return nil
}

func (in *Installer) validate(_ context.Context, rep *Report) error {
	res := validate.Run(rep.BaseDir, rep.Platform, in.Config.ValidatorThresholds())
	rep.Validation = &res

	r := in.reporter()
	if res.Passed {
		r.OK("%d chatmodes, %d instructions, %d scripts", res.Counts.Chatmodes, res.Counts.Instructions, res.Counts.Scripts)
		return nil
	}
	for _, s := range res.Shortfalls {
		r.Fail("%s", s)
	}
	return ValidationError(res, rep.Acquisition)
}

// ValidationError builds the fatal error for a failed validation, with a
// remediation hint derived from the acquisition summary when there is one.
func ValidationError(res validate.Result, sum *acquire.Summary) error {
	parts := make([]string, 0, len(res.Shortfalls))
	for _, s := range res.Shortfalls {
		parts = append(parts, s.String())
	}

	hint := "re-run `chatmode-kit install`"
	switch {
	case sum == nil:
	case sum.NetworkDown():
		hint = "the network appears to be down; check your connection and re-run `chatmode-kit install`"
	case sum.Failed > 0:
		hint = "some downloads failed; check source.base_url and re-run `chatmode-kit install`"
	}

	return clierr.Newf(clierr.ValidationFailed, "installation incomplete: %s", strings.Join(parts, "; ")).
		WithDetails(map[string]any{
			"counts":     res.Counts,
			"thresholds": res.Thresholds,
			"shortfalls": res.Shortfalls,
			"hint":       hint,
		})
}

func (in *Installer) generateShortcuts(_ context.Context, rep *Report) error {
	editor := rep.Editor
	if editor == "" {
		editor = in.Config.Editor.Command
	}
	path, err := shortcut.Generate(
		filepath.Join(rep.BaseDir, manifest.ScriptsDir),
		rep.Platform,
		shortcut.Data{
			ChatmodesDir: filepath.Join(rep.BaseDir, manifest.ChatmodesDir),
			Editor:       editor,
			Version:      in.Version,
		},
	)
	if err != nil {
		in.warn(rep, "shortcut not generated: %v", err)
		return nil
	}
	rep.Shortcut = path
	in.reporter().OK("%s", path)
	return nil
}

func (in *Installer) done(_ context.Context, rep *Report) error {
	rec := NewReceipt(rep, in.Manifest, in.Version, in.now())
	path, err := WriteReceipt(rep.BaseDir, rec)
	if err != nil {
		in.warn(rep, "install receipt not written: %v", err)
		return nil
	}
	rep.Receipt = path
	return nil
}

func (in *Installer) warn(rep *Report, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	rep.Warnings = append(rep.Warnings, msg)
	in.reporter().Warn("%s", msg)
}

func (in *Installer) now() time.Time {
	if in.Now == nil {
		return time.Now()
	}
	return in.Now()
}

func (in *Installer) logger() *zap.Logger {
	if in.Logger == nil {
		return zap.NewNop()
	}
	return in.Logger
}

func (in *Installer) reporter() Reporter {
	if in.Reporter == nil {
		return nopReporter{}
	}
	return in.Reporter
}

type nopReporter struct{}

func (nopReporter) OK(string, ...any)   {}
func (nopReporter) Warn(string, ...any) {}
func (nopReporter) Fail(string, ...any) {}
func (nopReporter) Info(string, ...any) {}
func (nopReporter) Section(string)      {}
