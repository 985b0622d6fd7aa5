package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillab/quill"
)

// Interface compliance check.
var _ quill.Observer = (*Observer)(nil)

// Observer adapts pipeline callbacks into Bubble Tea messages. Callbacks
// arrive on the pipeline goroutine; send must be safe to call from there,
// which (*tea.Program).Send is.
type Observer struct {
	send func(tea.Msg)

	// Inserted is copied into the DoneMsg so the view can report whether
	// the reply was placed into the target application. Set it before the
	// run starts.
	Inserted bool
}

// NewObserver creates an observer that forwards events through send.
func NewObserver(send func(tea.Msg)) *Observer {
	return &Observer{send: send}
}

func (o *Observer) DidReceive(token string) {
	o.send(TokenMsg{Text: token})
}

func (o *Observer) DidReceiveGrounding(md quill.GroundingMetadata) {
	o.send(GroundingMsg{Metadata: md})
}

func (o *Observer) DidComplete(fullReply string) {
	o.send(DoneMsg{Reply: fullReply, Inserted: o.Inserted})
}

func (o *Observer) DidFail(err error) {
	o.send(FailMsg{Err: err})
}

// ListenNotices returns a command that waits for the next notice on ch.
// It returns nil when the channel is closed, ending the listen loop.
func ListenNotices(ch <-chan quill.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NoticeMsg{Notice: n}
	}
}
