package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Status line prefixes.
const (
	PrefixOK   = "✅"
	PrefixFail = "❌"
	PrefixWarn = "⚠️ "
	PrefixInfo = "•"
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	sectionStyle = lipgloss.NewStyle().Bold(true)
)

// Status writes prefixed progress lines. It is safe for concurrent use so
// parallel downloads never interleave within a line. A quiet Status drops
// everything, for --json runs.
type Status struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool

	warnings int
	failures int
}

// NewStatus returns a Status writing to w.
func NewStatus(w io.Writer) *Status {
	return &Status{w: w}
}

// NewQuietStatus returns a Status that only counts lines.
func NewQuietStatus() *Status {
	return &Status{w: io.Discard, quiet: true}
}

// OK prints a success line.
func (s *Status) OK(format string, args ...any) {
	s.line(PrefixOK, okStyle, format, args...)
}

// Warn prints a warning line.
func (s *Status) Warn(format string, args ...any) {
	s.mu.Lock()
	s.warnings++
	s.mu.Unlock()
	s.line(PrefixWarn, warnStyle, format, args...)
}

// Fail prints a failure line.
func (s *Status) Fail(format string, args ...any) {
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()
	s.line(PrefixFail, failStyle, format, args...)
}

// Info prints an unstyled informational line.
func (s *Status) Info(format string, args ...any) {
	s.line(PrefixInfo, lipgloss.NewStyle(), format, args...)
}

// Section prints a bold heading for the next phase.
func (s *Status) Section(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiet {
		return
	}
	fmt.Fprintln(s.w)
	fmt.Fprintln(s.w, sectionStyle.Render(title))
}

// Warnings returns the number of warnings printed so far.
func (s *Status) Warnings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnings
}

// Failures returns the number of failure lines printed so far.
func (s *Status) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Status) line(prefix string, style lipgloss.Style, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiet {
		return
	}
	fmt.Fprintf(s.w, "%s %s\n", prefix, style.Render(fmt.Sprintf(format, args...)))
}
