// Package output handles formatting CLI output as status lines, tables or JSON.
package output

import (
	"os"

	"golang.org/x/term"
)

// Format represents an output format.
type Format int

const (
	// FormatText is human-readable status lines and tables.
	FormatText Format = iota
	// FormatJSON outputs JSON.
	FormatJSON
)

// EnvFormat selects the output format when no flag is given.
const EnvFormat = "CHATMODE_KIT_OUTPUT"

// isTerminalFn checks whether a file descriptor is a terminal. Replaceable in tests.
var isTerminalFn = func(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// Detect returns the format from the --json flag or the environment.
// Human output is the default even when piped; installer output is read by
// people far more often than by scripts.
func Detect(jsonFlag bool) Format {
	if jsonFlag {
		return FormatJSON
	}
	switch os.Getenv(EnvFormat) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Interactive reports whether both stdin and stdout are terminals, which is
// required before prompting.
func Interactive() bool {
	return isTerminalFn(os.Stdin.Fd()) && isTerminalFn(os.Stdout.Fd())
}
