// Package tui provides a Bubble Tea view of a single pipeline run: the
// draft, the reply streaming in token by token, and the terminal outcome.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillab/quill"
)

// Run creates and runs the Bubble Tea program. It blocks until the program
// exits. When the context is cancelled the program quits.
func Run(ctx context.Context, m Model) (Model, error) {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	final, err := p.Run()
	fm, ok := final.(Model)
	if !ok {
		return m, err
	}
	return fm, err
}

// TokenMsg delivers one streamed reply token.
type TokenMsg struct {
	Text string
}

// GroundingMsg delivers web grounding attribution.
type GroundingMsg struct {
	Metadata quill.GroundingMetadata
}

// NoticeMsg delivers a side-channel notice such as a low-quota warning.
type NoticeMsg struct {
	Notice quill.Notice
}

// DoneMsg signals that the run completed with the given full reply.
type DoneMsg struct {
	Reply    string
	Inserted bool
}

// FailMsg signals that the run ended without a reply.
type FailMsg struct {
	Err error
}
