// Package config handles the installer's configuration file.
package config

import "time"

// Default values used when the config file or a field is absent.
var (
	DefaultBaseURL  = "https://raw.githubusercontent.com/chatmode-kit/chatmode-kit/main"
	DefaultProbeURL = "https://github.com"

	DefaultEditor       = "code"
	DefaultAlternatives = []string{"code-insiders", "codium"}
)

// Fetch defaults.
const (
	DefaultClient         = "http"
	DefaultAttempts       = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultMaxTime        = 30 * time.Second
	DefaultConcurrency    = 1
)

// Threshold defaults.
const (
	DefaultMinChatmodes    = 8
	DefaultMinInstructions = 8
	DefaultMinScripts      = 0
	DefaultMinAcquired     = 15
)

const (
	// ConfigFileName is the name of the config file in the user config dir.
	ConfigFileName = "config.yml"

	// AppDirName is the directory under the user config dir.
	AppDirName = "chatmode-kit"

	// EnvConfig overrides the config file location.
	EnvConfig = "CHATMODE_KIT_CONFIG"

	// CurrentVersion is the current config schema version.
	CurrentVersion = 1
)
