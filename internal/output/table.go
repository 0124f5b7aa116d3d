package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/validate"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// DisableColor strips all styling from output.
func DisableColor() {
	headerStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	okStyle = lipgloss.NewStyle()
	failStyle = lipgloss.NewStyle()
	warnStyle = lipgloss.NewStyle()
	sectionStyle = lipgloss.NewStyle()
}

// ManifestTable renders manifest entries with their remote and local paths.
func ManifestTable(w io.Writer, entries []manifest.Entry, baseURL, baseDir string) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Manifest is empty.")
		return
	}

	const pad = 2
	catW, nameW := len("CATEGORY")+pad, len("FILE")+pad
	for _, e := range entries {
		catW = max(catW, len(e.Category.String())+pad)
		nameW = max(nameW, len(e.RemoteName)+pad)
	}

	header := fmt.Sprintf("%-*s %-*s %s", catW, "CATEGORY", nameW, "FILE", "DESTINATION")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, e := range entries {
		fmt.Fprintf(w, "%-*s %-*s %s\n", catW, e.Category, nameW, e.RemoteName, e.LocalPath(baseDir))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d files from %s", len(entries), baseURL)))
}

// CountsTable renders installed counts against their thresholds.
func CountsTable(w io.Writer, r validate.Result) {
	header := fmt.Sprintf("%-14s %6s %9s  %s", "CATEGORY", "FOUND", "EXPECTED", "")
	fmt.Fprintln(w, headerStyle.Render(strings.TrimRight(header, " ")))

	row := func(name string, found, expected int) {
		mark := PrefixOK
		if found < expected {
			mark = PrefixFail
		}
		fmt.Fprintf(w, "%-14s %6d %9s  %s\n", name, found, strconv.Itoa(expected)+"+", mark)
	}
	row("chatmodes", r.Counts.Chatmodes, r.Thresholds.Chatmodes)
	row("instructions", r.Counts.Instructions, r.Thresholds.Instructions)
	row("scripts", r.Counts.Scripts, r.Thresholds.Scripts)
}

// ProfileList renders installed profile names one per line.
func ProfileList(w io.Writer, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(w, "No profiles installed. Run `chatmode-kit install` first.")
		return
	}
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
}

// Field prints an aligned "label: value" line. Empty values render as a
// dimmed dash.
func Field(w io.Writer, label, value string) {
	if value == "" {
		value = dimStyle.Render("--")
	}
	fmt.Fprintf(w, "  %-14s %s\n", label+":", value)
}

// Heading prints a bold title.
func Heading(w io.Writer, title string) {
	fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Render(title))
}

// Messagef prints a simple formatted message line.
func Messagef(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

// FormatSize renders a byte count as "512 B", "3.4 KB" or "1.2 MB".
func FormatSize(n int64) string {
	const unit = 1024
	switch {
	case n < unit:
		return strconv.FormatInt(n, 10) + " B"
	case n < unit*unit:
		return strconv.FormatFloat(float64(n)/unit, 'f', 1, 64) + " KB"
	default:
		return strconv.FormatFloat(float64(n)/(unit*unit), 'f', 1, 64) + " MB"
	}
}
