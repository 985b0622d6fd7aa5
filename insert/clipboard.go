package insert

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"go.uber.org/zap"

	"github.com/quillab/quill"
)

// lookPath is a seam for tests.
var lookPath = exec.LookPath

func hasCommand(name string) bool {
	_, err := lookPath(name)
	return err == nil
}

// Interface compliance check.
var _ quill.Inserter = (*Clipboard)(nil)

// Clipboard inserts the reply by copying it to the system clipboard. The host
// integration restores focus to the target application and pastes; this side
// only guarantees the clipboard holds the reply.
type Clipboard struct {
	runner Runner
	goos   string
	logger *zap.Logger
}

// ClipboardOption configures a Clipboard inserter.
type ClipboardOption func(*Clipboard)

// WithRunner replaces the command runner, for tests.
func WithRunner(r Runner) ClipboardOption {
	return func(c *Clipboard) { c.runner = r }
}

// WithGOOS overrides platform detection, for tests.
func WithGOOS(goos string) ClipboardOption {
	return func(c *Clipboard) { c.goos = goos }
}

// NewClipboard creates a clipboard inserter for the current platform.
func NewClipboard(logger *zap.Logger, opts ...ClipboardOption) *Clipboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Clipboard{
		runner: ExecRunner{},
		goos:   runtime.GOOS,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Insert copies text to the clipboard using the platform tool.
func (c *Clipboard) Insert(ctx context.Context, text string, target quill.FocusTarget) error {
	name, args, err := c.command()
	if err != nil {
		return err
	}
	if err := c.runner.Run(ctx, text, name, args...); err != nil {
		return fmt.Errorf("insert: %s: %w", name, err)
	}
	c.logger.Debug("reply copied to clipboard",
		zap.String("app", target.App.Name),
		zap.String("element_role", target.ElementRole),
	)
	return nil
}

func (c *Clipboard) command() (string, []string, error) {
	switch c.goos {
	case "darwin":
		return "pbcopy", nil, nil
	case "linux":
		if hasCommand("wl-copy") {
			return "wl-copy", nil, nil
		}
		if hasCommand("xclip") {
			return "xclip", []string{"-selection", "clipboard"}, nil
		}
		return "", nil, fmt.Errorf("insert: no clipboard tool found, install wl-copy or xclip")
	default:
		return "", nil, fmt.Errorf("insert: unsupported platform %q", c.goos)
	}
}
