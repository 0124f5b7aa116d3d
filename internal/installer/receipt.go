package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/validate"
)

// ReceiptName is the install record kept in the base dir.
const ReceiptName = ".chatmode-kit.yml"

const receiptMode = 0o600

// Receipt records what the last successful install left on disk.
type Receipt struct {
	Version     string          `yaml:"version" json:"version"`
	InstalledAt time.Time       `yaml:"installed_at" json:"installed_at"`
	Platform    string          `yaml:"platform" json:"platform"`
	BaseURL     string          `yaml:"base_url" json:"base_url"`
	Settings    string          `yaml:"settings,omitempty" json:"settings,omitempty"`
	Counts      validate.Counts `yaml:"counts" json:"counts"`
	Files       []ReceiptFile   `yaml:"files" json:"files"`
}

// ReceiptFile is one installed manifest file, relative to the base dir.
type ReceiptFile struct {
	Path string `yaml:"path" json:"path"`
	Size int64  `yaml:"size" json:"size"`
}

// ReceiptPath returns the receipt location under baseDir.
func ReceiptPath(baseDir string) string {
	return filepath.Join(baseDir, ReceiptName)
}

// NewReceipt builds a receipt from the files currently on disk, so files
// kept from an earlier run are listed even if this run failed to refresh
// them.
func NewReceipt(rep *Report, m *manifest.Manifest, version string, now time.Time) *Receipt {
	rec := &Receipt{
		Version:     version,
		InstalledAt: now.UTC().Truncate(time.Second),
		Platform:    rep.Platform.String(),
		BaseURL:     rep.BaseURL,
	}
	if rep.Settings != nil {
		rec.Settings = string(rep.Settings.Action)
	}
	if rep.Validation != nil {
		rec.Counts = rep.Validation.Counts
	}
	for _, e := range m.For(rep.Platform) {
		info, err := os.Stat(e.LocalPath(rep.BaseDir))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		rec.Files = append(rec.Files, ReceiptFile{
			Path: filepath.ToSlash(filepath.Join(e.LocalSubdir, e.RemoteName)),
			Size: info.Size(),
		})
	}
	return rec
}

// WriteReceipt saves rec under baseDir, replacing any previous receipt
// atomically. It returns the receipt path.
func WriteReceipt(baseDir string, rec *Receipt) (string, error) {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshaling receipt: %w", err)
	}
	path := ReceiptPath(baseDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, receiptMode); err != nil {
		return "", fmt.Errorf("writing receipt: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing receipt: %w", err)
	}
	return path, nil
}

// ReadReceipt loads the receipt from baseDir. A missing receipt is a
// NOT_INSTALLED error.
func ReadReceipt(baseDir string) (*Receipt, error) {
	path := ReceiptPath(baseDir)
	data, err := os.ReadFile(path) //nolint:gosec // path under the install dir
	if errors.Is(err, fs.ErrNotExist) {
		return nil, clierr.Newf(clierr.NotInstalled,
			"no install found in %s (run 'chatmode-kit install')", baseDir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading receipt: %w", err)
	}
	var rec Receipt
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &rec, nil
}
