package insert_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillab/quill"
	"github.com/quillab/quill/insert"
)

type recordingRunner struct {
	stdin string
	name  string
	args  []string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, stdin string, name string, args ...string) error {
	r.stdin = stdin
	r.name = name
	r.args = args
	return r.err
}

func TestClipboard_Darwin(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	c := insert.NewClipboard(nil, insert.WithRunner(runner), insert.WithGOOS("darwin"))

	err := c.Insert(context.Background(), "Hi Sam,\n\nSounds good.", quill.FocusTarget{
		App:         quill.AppInfo{Name: "Mail"},
		ElementRole: "AXTextArea",
	})
	require.NoError(t, err)
	assert.Equal(t, "pbcopy", runner.name)
	assert.Empty(t, runner.args)
	assert.Equal(t, "Hi Sam,\n\nSounds good.", runner.stdin)
}

func TestClipboard_UnsupportedPlatform(t *testing.T) {
	t.Parallel()

	c := insert.NewClipboard(nil, insert.WithRunner(&recordingRunner{}), insert.WithGOOS("plan9"))

	err := c.Insert(context.Background(), "text", quill.FocusTarget{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform")
}

func TestClipboard_RunnerFailure(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{err: errors.New("exit status 1")}
	c := insert.NewClipboard(nil, insert.WithRunner(runner), insert.WithGOOS("darwin"))

	err := c.Insert(context.Background(), "text", quill.FocusTarget{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pbcopy")
}

func TestWriter_Insert(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	w := insert.Writer{W: &sb}

	err := w.Insert(context.Background(), "Final reply", quill.FocusTarget{})
	require.NoError(t, err)
	assert.Equal(t, "Final reply\n", sb.String())
}
