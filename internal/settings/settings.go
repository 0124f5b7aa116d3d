// Package settings proposes editor settings without ever overwriting a
// user's existing settings file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	fileMode = 0o600
	dirMode  = 0o750

	// RecommendedName is the sibling file written when settings exist.
	RecommendedName = "recommended-settings.json"

	backupLayout = "20060102-150405"

	// maxBackupSuffix bounds the -N suffixes tried when a backup name is
	// already taken.
	maxBackupSuffix = 100
)

// Action describes what Apply did.
type Action string

const (
	// Created means no settings file existed and the fragment was written
	// as the whole file.
	Created Action = "created"
	// Recommended means the settings file existed; it was backed up and
	// left untouched, and the fragment was written next to it.
	Recommended Action = "recommended"
)

// Fragment is the JSON document proposed to the editor.
type Fragment map[string]any

// DefaultFragment returns the settings that point the editor at the
// installed chatmodes and instructions.
func DefaultFragment(chatmodesDir, instructionsDir string) Fragment {
	return Fragment{
		"chat.promptFiles": true,
		"chat.modeFilesLocations": map[string]bool{
			filepath.ToSlash(chatmodesDir): true,
		},
		"chat.instructionsFilesLocations": map[string]bool{
			filepath.ToSlash(instructionsDir): true,
		},
		"github.copilot.chat.codeGeneration.useInstructionFiles": true,
	}
}

// Marshal renders the fragment as indented JSON with a trailing newline.
// Keys are sorted, so output is stable across runs.
func (f Fragment) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return append(data, '\n'), nil
}

// Outcome reports the result of Apply.
type Outcome struct {
	Action          Action `json:"action"`
	SettingsPath    string `json:"settings_path"`
	RecommendedPath string `json:"recommended_path,omitempty"`
	BackupPath      string `json:"backup_path,omitempty"`

	// BackupErr is set when the backup copy failed. The run continues.
	BackupErr   error  `json:"-"`
	BackupError string `json:"backup_error,omitempty"`
}

// Merger writes the fragment to a settings path.
type Merger struct {
	// Now is used for backup timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (m Merger) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// Apply writes the fragment as the settings file when none exists.
// Otherwise it copies the existing file to a timestamped backup, writes the
// fragment to recommended-settings.json beside it and returns without
// modifying the original. A failed backup is reported in the Outcome and
// does not stop the recommended file from being written.
func (m Merger) Apply(path string, f Fragment) (Outcome, error) {
	out := Outcome{SettingsPath: path}

	data, err := f.Marshal()
	if err != nil {
		return out, err
	}

	_, statErr := os.Stat(path)
	switch {
	case errors.Is(statErr, fs.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
			return out, fmt.Errorf("creating settings directory: %w", err)
		}
		if err := writeNew(path, data); err != nil {
			return out, err
		}
		out.Action = Created
		return out, nil
	case statErr != nil:
		return out, fmt.Errorf("checking settings file: %w", statErr)
	}

	out.Action = Recommended
	if backup, err := backupFile(path, m.now()); err != nil {
		out.BackupErr = err
		out.BackupError = err.Error()
	} else {
		out.BackupPath = backup
	}

	rec := filepath.Join(filepath.Dir(path), RecommendedName)
	if err := os.WriteFile(rec, data, fileMode); err != nil {
		return out, fmt.Errorf("writing %s: %w", RecommendedName, err)
	}
	out.RecommendedPath = rec
	return out, nil
}

// writeNew creates path exclusively, so a settings file that appears
// between the existence check and the write is never clobbered.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode) //nolint:gosec // settings path from platform resolution
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing settings: %w", err)
	}
	return f.Close()
}

// backupFile copies path to <path>.backup-<timestamp>. Runs within the
// same second get -1, -2, ... suffixes so every run leaves its own backup.
func backupFile(path string, now time.Time) (string, error) {
	base := fmt.Sprintf("%s.backup-%s", path, now.Format(backupLayout))
	name := base
	for i := 1; ; i++ {
		err := copyFile(path, name)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) || i > maxBackupSuffix {
			return "", err
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // settings path from platform resolution
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode) //nolint:gosec // sibling of the settings file
	if err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copying to backup: %w", err)
	}
	return out.Close()
}
