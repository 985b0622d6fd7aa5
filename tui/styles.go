package tui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/quillab/quill"
)

// Styles maps a Theme to lipgloss styles for TUI rendering.
type Styles struct {
	Draft     lipgloss.Style
	Reply     lipgloss.Style
	Grounding lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
}

// NewStyles creates Styles from a Theme.
func NewStyles(t quill.Theme) Styles {
	return Styles{
		Draft:     lipgloss.NewStyle().Foreground(ansiColor(t.Draft)),
		Reply:     lipgloss.NewStyle().Foreground(ansiColor(t.Reply)),
		Grounding: lipgloss.NewStyle().Foreground(ansiColor(t.Grounding)),
		Error:     lipgloss.NewStyle().Foreground(ansiColor(t.Error)),
		Success:   lipgloss.NewStyle().Foreground(ansiColor(t.Success)),
		Muted:     lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		Accent:    lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
