// Package provision creates the installer's directory layout.
package provision

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
)

const dirMode = 0o750

// Ensure creates baseDir and each subdirectory under it if missing. Existing
// directories and their contents are left untouched. It returns the
// directories that had to be created.
func Ensure(baseDir string, subdirs []string) ([]string, error) {
	dirs := make([]string, 0, len(subdirs)+1)
	dirs = append(dirs, baseDir)
	for _, s := range subdirs {
		dirs = append(dirs, filepath.Join(baseDir, s))
	}

	var created []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return created, clierr.Newf(clierr.PermissionDenied,
					"cannot create directory %s: a file with that name exists", dir).
					WithDetails(map[string]any{"path": dir})
			}
			continue
		}
		if err := os.MkdirAll(dir, dirMode); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return created, clierr.Newf(clierr.PermissionDenied,
					"permission denied creating %s (re-run with sufficient permissions or choose another --dir)", dir).
					WithDetails(map[string]any{"path": dir})
			}
			return created, clierr.Newf(clierr.PermissionDenied, "creating %s: %v", dir, err).
				WithDetails(map[string]any{"path": dir})
		}
		created = append(created, dir)
	}
	return created, nil
}
