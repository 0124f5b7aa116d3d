package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/output"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Show the files install will fetch",
	Long: `Prints the manifest entries that apply to this platform, with their
destination paths. Use --os to see another platform's manifest.`,
	Args: cobra.NoArgs,
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().String("os", "", "show the manifest for another platform (linux, macos, windows)")
	rootCmd.AddCommand(manifestCmd)
}

type manifestEntry struct {
	manifest.Entry
	URL  string `json:"url"`
	Path string `json:"path"`
}

func runManifest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := resolveEnv()
	if err != nil {
		return err
	}

	o := env.OS
	if v, _ := cmd.Flags().GetString("os"); v != "" {
		o = platform.Parse(v)
		if o == platform.Unknown && v != platform.Unknown.String() {
			return invalidOS(v)
		}
	}
	entries := manifest.Default().For(o)

	if outputFormat() == output.FormatJSON {
		out := make([]manifestEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, manifestEntry{Entry: e, URL: e.URL(cfg.Source.BaseURL), Path: e.LocalPath(env.BaseDir)})
		}
		return output.JSON(os.Stdout, out)
	}
	output.ManifestTable(os.Stdout, entries, cfg.Source.BaseURL, env.BaseDir)
	return nil
}

func invalidOS(v string) error {
	return clierr.Newf(clierr.InvalidInput, "unknown platform %q (want linux, macos or windows)", v)
}
