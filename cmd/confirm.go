package cmd

import (
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmFn asks a yes/no question. Replaceable in tests.
var confirmFn = confirm

// confirm shows a y/N prompt using bubbletea and reports whether the user
// accepted. Any error running the prompt counts as a refusal.
func confirm(prompt string, lines []string) bool {
	m := confirmModel{prompt: prompt, lines: lines}

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return false
	}
	final, ok := result.(confirmModel)
	return ok && final.accepted
}

// confirmModel is a bubbletea model for a y/N confirmation. Enter picks
// the default, which is no.
type confirmModel struct {
	prompt   string
	lines    []string
	done     bool
	accepted bool
}

var (
	confirmPromptStyle = lipgloss.NewStyle().Bold(true)
	confirmDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	confirmYesStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "y", "Y":
		m.done = true
		m.accepted = true
		return m, tea.Quit
	case "n", "N", "enter", "q", "esc", "ctrl+c":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		if m.accepted {
			return confirmYesStyle.Render("Proceeding.") + "\n"
		}
		return ""
	}

	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString("  " + confirmDimStyle.Render(l) + "\n")
	}
	b.WriteString(confirmPromptStyle.Render(m.prompt) + " [y/N] ")
	return b.String()
}
