// Package clierr defines structured CLI errors with machine-readable codes.
package clierr

import "fmt"

// Error codes.
const (
	ToolMissing      = "TOOL_MISSING"
	PermissionDenied = "PERMISSION_DENIED"
	ValidationFailed = "VALIDATION_FAILED"
	InvalidInput     = "INVALID_INPUT"
	ConfigInvalid    = "CONFIG_INVALID"
	ProfileNotFound  = "PROFILE_NOT_FOUND"
	NotInstalled     = "NOT_INSTALLED"
	Canceled         = "CANCELED"
	InternalError    = "INTERNAL_ERROR"
)

// Error is a CLI error carrying a code, a human-readable message and
// optional details for JSON output.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// ExitCode returns the process exit code for the error: 2 for internal
// errors, 1 for everything else.
func (e *Error) ExitCode() int {
	if e.Code == InternalError {
		return 2 //nolint:mnd // exit code 2 for internal errors
	}
	return 1
}

// WithDetails attaches details and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// New creates an Error with the given code and message.
func New(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// SilentError signals that output has already been written and the
// process should exit with Code without printing anything else.
type SilentError struct {
	Code int
}

func (e *SilentError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}
