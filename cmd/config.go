package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/config"
	"github.com/antopolskiy/chatmode-kit/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify installer configuration",
	Long: `View the effective configuration, get a specific key, or set a value.
Values come from the config file when present and from defaults otherwise.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value and save the config file",
	Args:  cobra.ExactArgs(2), //nolint:mnd // key and value
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configAccessor describes how to get and set a config key.
type configAccessor struct {
	get func(*config.Config) any
	set func(*config.Config, string) error
}

func stringKey(field func(*config.Config) *string) configAccessor {
	return configAccessor{
		get: func(c *config.Config) any { return *field(c) },
		set: func(c *config.Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(field func(*config.Config) *int) configAccessor {
	return configAccessor{
		get: func(c *config.Config) any { return *field(c) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return clierr.Newf(clierr.InvalidInput, "invalid integer %q", v)
			}
			*field(c) = n
			return nil
		},
	}
}

func configAccessors() map[string]configAccessor {
	return map[string]configAccessor{
		"version": {
			get: func(c *config.Config) any { return c.Version },
		},
		"source.base_url":         stringKey(func(c *config.Config) *string { return &c.Source.BaseURL }),
		"source.probe_url":        stringKey(func(c *config.Config) *string { return &c.Source.ProbeURL }),
		"fetch.client":            stringKey(func(c *config.Config) *string { return &c.Fetch.Client }),
		"fetch.attempts":          intKey(func(c *config.Config) *int { return &c.Fetch.Attempts }),
		"fetch.retry_delay":       stringKey(func(c *config.Config) *string { return &c.Fetch.RetryDelay }),
		"fetch.connect_timeout":   stringKey(func(c *config.Config) *string { return &c.Fetch.ConnectTimeout }),
		"fetch.max_time":          stringKey(func(c *config.Config) *string { return &c.Fetch.MaxTime }),
		"fetch.concurrency":       intKey(func(c *config.Config) *int { return &c.Fetch.Concurrency }),
		"thresholds.chatmodes":    intKey(func(c *config.Config) *int { return &c.Thresholds.Chatmodes }),
		"thresholds.instructions": intKey(func(c *config.Config) *int { return &c.Thresholds.Instructions }),
		"thresholds.scripts":      intKey(func(c *config.Config) *int { return &c.Thresholds.Scripts }),
		"thresholds.acquired":     intKey(func(c *config.Config) *int { return &c.Thresholds.Acquired }),
		"editor.command":          stringKey(func(c *config.Config) *string { return &c.Editor.Command }),
		"editor.alternatives": {
			get: func(c *config.Config) any { return c.Editor.Alternatives },
			set: func(c *config.Config, v string) error {
				c.Editor.Alternatives = splitList(v)
				return nil
			},
		},
	}
}

// allConfigKeys returns config keys in display order.
func allConfigKeys() []string {
	return []string{
		"version",
		"source.base_url",
		"source.probe_url",
		"fetch.client",
		"fetch.attempts",
		"fetch.retry_delay",
		"fetch.connect_timeout",
		"fetch.max_time",
		"fetch.concurrency",
		"thresholds.chatmodes",
		"thresholds.instructions",
		"thresholds.scripts",
		"thresholds.acquired",
		"editor.command",
		"editor.alternatives",
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	accessors := configAccessors()

	if outputFormat() == output.FormatJSON {
		m := make(map[string]any, len(accessors)+1)
		for _, key := range allConfigKeys() {
			m[key] = accessors[key].get(cfg)
		}
		m["path"] = cfg.Path()
		return output.JSON(os.Stdout, m)
	}

	fmt.Fprintf(os.Stdout, "# %s\n", cfg.Path())
	for _, key := range allConfigKeys() {
		val := accessors[key].get(cfg)
		fmt.Fprintf(os.Stdout, "%-24s %v\n", key, formatConfigValue(val))
	}
	return nil
}

func runConfigGet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key := args[0]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key)
	}

	val := acc.get(cfg)

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, val)
	}

	fmt.Fprintln(os.Stdout, formatConfigValue(val))
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key)
	}
	if acc.set == nil {
		return clierr.Newf(clierr.InvalidInput, "config key %q is read-only", key)
	}

	if err := acc.set(cfg, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return clierr.New(clierr.InvalidInput, err.Error())
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{"key": key, "value": acc.get(cfg)})
	}

	output.Messagef(os.Stdout, "Set %s = %v", key, formatConfigValue(acc.get(cfg)))
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatConfigValue(val any) string {
	switch v := val.(type) {
	case []string:
		if len(v) == 0 {
			return "--"
		}
		return strings.Join(v, ", ")
	case string:
		if v == "" {
			return "--"
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
