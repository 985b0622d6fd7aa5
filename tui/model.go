package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillab/quill"
	"github.com/quillab/quill/render"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for a single run.
type Model struct {
	// Viewport is the scrollable reply area. Exported for test access.
	Viewport viewport.Model

	spinner  spinner.Model
	theme    quill.Theme
	styles   Styles
	cancel   func()
	noticeCh <-chan quill.Notice

	instruction string
	mode        quill.Mode
	app         string

	reply     string
	grounding quill.GroundingMetadata
	notice    string

	done       bool
	inserted   bool
	cancelling bool
	err        error
	ready      bool
}

// Option configures a Model.
type Option func(*Model)

// WithCancel wires the pipeline cancel function to Ctrl+C and Esc.
func WithCancel(cancel func()) Option {
	return func(m *Model) { m.cancel = cancel }
}

// WithNotices subscribes the view to a notice channel.
func WithNotices(ch <-chan quill.Notice) Option {
	return func(m *Model) { m.noticeCh = ch }
}

// New creates a Model for a run against app with the given instruction.
func New(instruction string, mode quill.Mode, app string, theme quill.Theme, opts ...Option) Model {
	styles := NewStyles(theme)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Accent

	m := Model{
		spinner:     sp,
		theme:       theme,
		styles:      styles,
		instruction: instruction,
		mode:        mode,
		app:         app,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Done reports whether the run reached a terminal state.
func (m Model) Done() bool { return m.done }

// Err returns the terminal error, if any.
func (m Model) Err() error { return m.err }

// Reply returns the reply text accumulated so far.
func (m Model) Reply() string { return m.reply }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.noticeCh != nil {
		cmds = append(cmds, ListenNotices(m.noticeCh))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TokenMsg:
		m.reply += msg.Text
		m.refreshViewport()
		return m, nil

	case GroundingMsg:
		m.grounding = msg.Metadata
		m.refreshViewport()
		return m, nil

	case NoticeMsg:
		m.notice = noticeText(msg.Notice)
		var cmd tea.Cmd
		if m.noticeCh != nil {
			cmd = ListenNotices(m.noticeCh)
		}
		return m, cmd

	case DoneMsg:
		m.done = true
		m.reply = msg.Reply
		m.inserted = msg.Inserted
		m.refreshViewport()
		return m, nil

	case FailMsg:
		m.done = true
		m.err = msg.Err
		m.refreshViewport()
		return m, nil
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	headerHeight := 1
	statusHeight := 1
	borderHeight := 2
	vpHeight := msg.Height - headerHeight - statusHeight - borderHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.refreshViewport()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		if !m.done {
			if m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.done {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyRunes:
		if m.done && string(msg.Runes) == "q" {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// refreshViewport re-renders the reply at the current width. While tokens
// are still arriving the text is wrapped without markdown styling, since
// partial markdown renders unstably. The finished reply gets the full
// treatment.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := m.Viewport.Width
	var content string
	if m.done && m.err == nil {
		content = render.Reply(m.reply, width, m.theme)
	} else {
		content = m.styles.Reply.Render(render.Wrap(m.reply, width))
	}
	if sources := render.Sources(m.grounding, m.theme); sources != "" {
		content += "\n\n" + sources
	}
	m.Viewport.SetContent(content)
	m.Viewport.GotoBottom()
}

func (m Model) header() string {
	title := m.styles.Accent.Render(m.app)
	detail := m.styles.Muted.Render(fmt.Sprintf("· %s", m.mode))
	if m.instruction != "" {
		detail += m.styles.Muted.Render(" · " + m.instruction)
	}
	return title + " " + detail
}

func (m Model) statusLine() string {
	switch {
	case m.err != nil:
		return m.styles.Error.Render("✗ " + friendlyError(m.err))
	case m.done:
		status := "✓ Reply ready"
		if m.inserted {
			status = "✓ Reply inserted"
		}
		return m.styles.Success.Render(status) + m.styles.Muted.Render("  Enter or q to close")
	case m.cancelling:
		return m.styles.Muted.Render("Cancelling...")
	default:
		line := m.spinner.View() + m.styles.Muted.Render("Writing...")
		if m.notice != "" {
			line += m.styles.Muted.Render("  " + m.notice)
		}
		return line
	}
}

func friendlyError(err error) string {
	switch {
	case errors.Is(err, quill.ErrCancelled):
		return "Cancelled"
	case errors.Is(err, quill.ErrQuotaExceeded):
		return "Daily quota exhausted"
	case errors.Is(err, quill.ErrTermsRequired):
		return "Updated terms must be accepted before continuing"
	case errors.Is(err, quill.ErrContextUnavailable):
		return "No on-screen context could be captured"
	case errors.Is(err, quill.ErrMissingCredential):
		return "API key missing"
	case errors.Is(err, quill.ErrPermissionDenied):
		return "This app is excluded from capture"
	default:
		return err.Error()
	}
}

func noticeText(n quill.Notice) string {
	switch n := n.(type) {
	case quill.QuotaLowNotice:
		return fmt.Sprintf("%d replies left today", n.Remaining)
	case quill.QuotaExceededNotice:
		return "Daily quota exhausted"
	case quill.TermsRequiredNotice:
		return "Terms acceptance required"
	case quill.PermissionErrorNotice:
		return fmt.Sprintf("%s is excluded from capture", n.App)
	default:
		return ""
	}
}
