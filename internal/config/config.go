package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/antopolskiy/chatmode-kit/internal/fetch"
	"github.com/antopolskiy/chatmode-kit/internal/validate"
)

const (
	fileMode = 0o600
	dirMode  = 0o750
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the installer configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Source     SourceConfig     `yaml:"source"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Editor     EditorConfig     `yaml:"editor"`

	// path is where the config was loaded from (not serialized).
	path string `yaml:"-"`
}

// SourceConfig locates the remote content.
type SourceConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url"`
	ProbeURL string `yaml:"probe_url" json:"probe_url"`
}

// FetchConfig controls downloads. Durations use time.ParseDuration syntax.
type FetchConfig struct {
	Client         string `yaml:"client" json:"client"`
	Attempts       int    `yaml:"attempts" json:"attempts"`
	RetryDelay     string `yaml:"retry_delay" json:"retry_delay"`
	ConnectTimeout string `yaml:"connect_timeout" json:"connect_timeout"`
	MaxTime        string `yaml:"max_time" json:"max_time"`
	Concurrency    int    `yaml:"concurrency" json:"concurrency"`
}

// ThresholdsConfig holds the validator minimums and the acquisition count
// below which connectivity is probed.
type ThresholdsConfig struct {
	Chatmodes    int `yaml:"chatmodes" json:"chatmodes"`
	Instructions int `yaml:"instructions" json:"instructions"`
	Scripts      int `yaml:"scripts" json:"scripts"`
	Acquired     int `yaml:"acquired" json:"acquired"`
}

// EditorConfig names the launcher command and its accepted alternatives.
type EditorConfig struct {
	Command      string   `yaml:"command" json:"command"`
	Alternatives []string `yaml:"alternatives,omitempty" json:"alternatives,omitempty"`
}

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	return &Config{
		Version: CurrentVersion,
		Source: SourceConfig{
			BaseURL:  DefaultBaseURL,
			ProbeURL: DefaultProbeURL,
		},
		Fetch: FetchConfig{
			Client:         DefaultClient,
			Attempts:       DefaultAttempts,
			RetryDelay:     DefaultRetryDelay.String(),
			ConnectTimeout: DefaultConnectTimeout.String(),
			MaxTime:        DefaultMaxTime.String(),
			Concurrency:    DefaultConcurrency,
		},
		Thresholds: ThresholdsConfig{
			Chatmodes:    DefaultMinChatmodes,
			Instructions: DefaultMinInstructions,
			Scripts:      DefaultMinScripts,
			Acquired:     DefaultMinAcquired,
		},
		Editor: EditorConfig{
			Command:      DefaultEditor,
			Alternatives: append([]string{}, DefaultAlternatives...),
		},
	}
}

// Path returns the file the config was loaded from or will be saved to.
func (c *Config) Path() string {
	return c.path
}

// SetPath sets the config file location.
func (c *Config) SetPath(path string) {
	c.path = path
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrInvalid, c.Version, CurrentVersion)
	}
	if err := validateURL("source.base_url", c.Source.BaseURL); err != nil {
		return err
	}
	if c.Source.ProbeURL != "" {
		if err := validateURL("source.probe_url", c.Source.ProbeURL); err != nil {
			return err
		}
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	t := c.Thresholds
	if t.Chatmodes < 0 || t.Instructions < 0 || t.Scripts < 0 || t.Acquired < 0 {
		return fmt.Errorf("%w: thresholds must be >= 0", ErrInvalid)
	}
	if c.Editor.Command == "" {
		return fmt.Errorf("%w: editor.command is required", ErrInvalid)
	}
	return nil
}

func (c *Config) validateFetch() error {
	f := c.Fetch
	if f.Client != fetch.KindHTTP && f.Client != fetch.KindCurl {
		return fmt.Errorf("%w: fetch.client must be %q or %q, got %q", ErrInvalid, fetch.KindHTTP, fetch.KindCurl, f.Client)
	}
	if f.Attempts < 1 {
		return fmt.Errorf("%w: fetch.attempts must be >= 1", ErrInvalid)
	}
	if f.Concurrency < 1 {
		return fmt.Errorf("%w: fetch.concurrency must be >= 1", ErrInvalid)
	}
	for _, d := range []struct{ name, value string }{
		{"fetch.retry_delay", f.RetryDelay},
		{"fetch.connect_timeout", f.ConnectTimeout},
		{"fetch.max_time", f.MaxTime},
	} {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%w: invalid %s %q: %w", ErrInvalid, d.name, d.value, err)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s must be >= 0", ErrInvalid, d.name)
		}
	}
	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, field)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an http(s) URL, got %q", ErrInvalid, field, raw)
	}
	return nil
}

// RetryDelay returns the pause between attempts. Unparseable values fall
// back to the default; Validate reports them.
func (c *Config) RetryDelay() time.Duration {
	return parseDuration(c.Fetch.RetryDelay, DefaultRetryDelay)
}

// Timeouts returns the per-attempt fetch timeouts.
func (c *Config) Timeouts() fetch.Timeouts {
	return fetch.Timeouts{
		Connect: parseDuration(c.Fetch.ConnectTimeout, DefaultConnectTimeout),
		Max:     parseDuration(c.Fetch.MaxTime, DefaultMaxTime),
	}
}

// ValidatorThresholds returns the per-category minimums.
func (c *Config) ValidatorThresholds() validate.Thresholds {
	return validate.Thresholds{
		Chatmodes:    c.Thresholds.Chatmodes,
		Instructions: c.Thresholds.Instructions,
		Scripts:      c.Thresholds.Scripts,
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Save writes the config to its path, creating the directory if needed.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no path")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), dirMode); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(c.path, data, fileMode)
}

// Load reads and validates the config at path. A missing file yields the
// defaults. Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := NewDefault()
	cfg.path = path

	data, err := os.ReadFile(path) //nolint:gosec // config path from flag or user config dir
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.Version = 0
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalid, path, err)
	}

	if err := migrate(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Getenv looks up an environment variable.
type Getenv func(key string) string

// ResolvePath picks the config file location: the explicit flag value,
// then $CHATMODE_KIT_CONFIG, then <user config dir>/chatmode-kit/config.yml.
func ResolvePath(flag string, getenv Getenv) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if p := getenv(EnvConfig); p != "" {
		return filepath.Abs(p)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(dir, AppDirName, ConfigFileName), nil
}
