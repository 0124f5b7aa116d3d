// Package platform detects the host operating system and resolves the
// directories the installer writes into.
package platform

import (
	"path/filepath"
	"strings"
)

// OS is the closed set of platforms the installer distinguishes.
type OS int

const (
	// Unknown is any platform not listed below. It is treated like Linux
	// for path resolution.
	Unknown OS = iota
	Linux
	MacOS
	Windows
)

// String returns the lowercase platform name.
func (o OS) String() string {
	switch o {
	case Linux:
		return "linux"
	case MacOS:
		return "macos"
	case Windows:
		return "windows"
	case Unknown:
		return "unknown"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler so OS renders as its name in
// JSON and YAML.
func (o OS) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Parse converts a platform name (as produced by String, or a GOOS value)
// back to an OS. Unrecognized names yield Unknown.
func Parse(name string) OS {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linux":
		return Linux
	case "macos", "darwin":
		return MacOS
	case "windows":
		return Windows
	}
	return Unknown
}

// Detect maps a GOOS value to an OS.
func Detect(goos string) OS {
	switch goos {
	case "linux":
		return Linux
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	}
	return Unknown
}

// Getenv looks up an environment variable. os.Getenv satisfies it.
type Getenv func(key string) string

// ResolveHome returns the user's home directory for the given platform.
// Windows prefers USERPROFILE; every other platform prefers HOME. The other
// variable is used as a fallback when the preferred one is empty.
func ResolveHome(o OS, getenv Getenv) string {
	primary, fallback := "HOME", "USERPROFILE"
	if o == Windows {
		primary, fallback = "USERPROFILE", "HOME"
	}
	if v := getenv(primary); v != "" {
		return v
	}
	return getenv(fallback)
}

// Env is the resolved installation environment.
type Env struct {
	OS           OS     `json:"os"`
	Home         string `json:"home"`
	BaseDir      string `json:"base_dir"`
	SettingsPath string `json:"settings_path"`
}

// Overridable environment variables.
const (
	EnvBaseDir  = "CHATMODE_KIT_DIR"
	EnvSettings = "CHATMODE_KIT_SETTINGS"
)

// BaseDirName is the installer's directory under the editor config root.
var BaseDirName = filepath.Join(".vscode", "chatmode-kit")

// Resolve detects the platform and resolves the base and settings paths.
// It performs no I/O beyond calling getenv.
func Resolve(goos string, getenv Getenv) Env {
	o := Detect(goos)
	home := ResolveHome(o, getenv)

	env := Env{
		OS:           o,
		Home:         home,
		BaseDir:      filepath.Join(home, BaseDirName),
		SettingsPath: SettingsPath(o, home, getenv),
	}
	if v := getenv(EnvBaseDir); v != "" {
		env.BaseDir = v
	}
	if v := getenv(EnvSettings); v != "" {
		env.SettingsPath = v
	}
	return env
}

// SettingsPath returns the VS Code user settings file for the platform.
func SettingsPath(o OS, home string, getenv Getenv) string {
	switch o {
	case Windows:
		appData := getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Code", "User", "settings.json")
	case MacOS:
		return filepath.Join(home, "Library", "Application Support", "Code", "User", "settings.json")
	case Linux, Unknown:
	}
	configHome := getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "Code", "User", "settings.json")
}
