package quill

import "fmt"

// Mode selects what a run produces and whether the reply is delivered into
// the user's focus target.
type Mode string

const (
	// ModeCompose generates text to be inserted into the active input.
	ModeCompose Mode = "compose"
	// ModeAsk answers a question about the captured context. Read-only:
	// the reply is reported to the observer but never inserted.
	ModeAsk Mode = "ask"
	// ModeTitle generates a short title for the captured content. The
	// reply is title text for the caller; it is not inserted.
	ModeTitle Mode = "title"
)

// InsertsReply reports whether a successful run in this mode delivers the
// reply into the focus target.
func (m Mode) InsertsReply() bool {
	return m == ModeCompose
}

// Validate checks that the mode is one of the known values.
func (m Mode) Validate() error {
	switch m {
	case ModeCompose, ModeAsk, ModeTitle:
		return nil
	default:
		return fmt.Errorf("unknown mode %q: %w", string(m), ErrValidation)
	}
}
