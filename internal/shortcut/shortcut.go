// Package shortcut generates the profile launcher script and implements
// the same lookup for the open and list commands.
package shortcut

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
)

//go:embed templates
var templatesFS embed.FS

const (
	unixName    = "chatmode.sh"
	windowsName = "chatmode.cmd"

	unixMode    = 0o755
	windowsMode = 0o644
)

var templates = template.Must(template.New("").
	Funcs(template.FuncMap{"shquote": shQuote}).
	ParseFS(templatesFS, "templates/*.tmpl"))

// Data fills the launcher template.
type Data struct {
	ChatmodesDir string
	Editor       string
	Version      string
	Suffix       string
}

// ScriptName returns the launcher file name for o.
func ScriptName(o platform.OS) string {
	if o == platform.Windows {
		return windowsName
	}
	return unixName
}

// Render returns the launcher script for o.
func Render(o platform.OS, d Data) ([]byte, error) {
	if d.Suffix == "" {
		d.Suffix = manifest.ChatmodeSuffix
	}
	name := ScriptName(o) + ".tmpl"
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, d); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	out := buf.Bytes()
	if o == platform.Windows {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out, nil
}

// Generate writes the launcher script into scriptsDir and returns its path.
func Generate(scriptsDir string, o platform.OS, d Data) (string, error) {
	data, err := Render(o, d)
	if err != nil {
		return "", err
	}
	path := filepath.Join(scriptsDir, ScriptName(o))
	mode := os.FileMode(unixMode)
	if o == platform.Windows {
		mode = windowsMode
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, mode); err != nil && o != platform.Windows {
		return path, fmt.Errorf("marking %s executable: %w", path, err)
	}
	return path, nil
}

// Profiles returns the installed profile names, sorted, derived by
// stripping the chatmode suffix from every matching file.
func Profiles(chatmodesDir string) ([]string, error) {
	entries, err := os.ReadDir(chatmodesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", chatmodesDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), manifest.ChatmodeSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), manifest.ChatmodeSuffix))
	}
	sort.Strings(names)
	return names, nil
}

// Resolve maps a profile name to its file. An unknown name yields a
// PROFILE_NOT_FOUND error listing the available profiles.
func Resolve(chatmodesDir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", notFound(chatmodesDir, name)
	}
	path := filepath.Join(chatmodesDir, name+manifest.ChatmodeSuffix)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", notFound(chatmodesDir, name)
	}
	return path, nil
}

func notFound(chatmodesDir, name string) error {
	available, _ := Profiles(chatmodesDir)
	msg := fmt.Sprintf("profile %q not found", name)
	if name == "" {
		msg = "no profile given"
	}
	if len(available) > 0 {
		msg += " (available: " + strings.Join(available, ", ") + ")"
	}
	return clierr.New(clierr.ProfileNotFound, msg).
		WithDetails(map[string]any{"available": available})
}

// Launcher starts the editor on a file.
type Launcher func(ctx context.Context, editor, path string) error

// ExecLauncher runs the editor command and waits for it to return. The VS
// Code launcher returns as soon as the file is handed to the editor.
func ExecLauncher(ctx context.Context, editor, path string) error {
	cmd := exec.CommandContext(ctx, editor, path) //nolint:gosec // editor command from config
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", editor, err)
	}
	return nil
}

// shQuote single-quotes s for POSIX sh.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
