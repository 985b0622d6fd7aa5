// Package insert delivers a finished reply into the user's focus target.
//
// The Clipboard inserter places the text on the system clipboard with
// platform tools; re-focusing the target application and issuing the paste
// keystroke belongs to the host integration outside this module. The Writer
// inserter streams the text to an io.Writer for headless and demo runs.
package insert

import (
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/quillab/quill"
)

// Runner executes an external command, feeding it stdin. It exists so tests
// can observe clipboard invocations without touching the real clipboard.
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	return cmd.Run()
}

// Interface compliance check.
var _ quill.Inserter = Writer{}

// Writer is a [quill.Inserter] that writes the reply to w, for terminal and
// demo use.
type Writer struct {
	W io.Writer
}

// Insert writes the text followed by a newline.
func (w Writer) Insert(_ context.Context, text string, _ quill.FocusTarget) error {
	_, err := io.WriteString(w.W, text+"\n")
	return err
}
