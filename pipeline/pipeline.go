// Package pipeline implements the coordinator that sequences context
// validation, quota gating, streaming completion, insertion, and telemetry
// for one assist run, with cooperative cancellation at every suspension
// boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillab/quill"
	"github.com/quillab/quill/capture"
)

// defaultQuotaLowThreshold is the remaining-quota level at or below which a
// QuotaLowNotice is published on a successful gate check.
const defaultQuotaLowThreshold = 3

// Deps are the coordinator's injected collaborators. Completer is required.
// Gate, Inserter, Recorder, Notifier, and Logger may be nil: a nil gate skips
// gating, a nil inserter skips delivery, and the rest default to no-ops.
type Deps struct {
	Completer quill.Completer
	Gate      quill.Gate
	Inserter  quill.Inserter
	Recorder  quill.Recorder
	Notifier  quill.Notifier
	Logger    *zap.Logger
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithMode sets the operating mode. Default is ModeCompose.
func WithMode(m quill.Mode) Option {
	return func(c *Coordinator) { c.mode = m }
}

// WithTone sets the reply tone. A #tone: directive embedded in the
// instruction overrides it.
func WithTone(t quill.Tone) Option {
	return func(c *Coordinator) { c.tone = t }
}

// WithContext supplies the pre-captured context for the run. Without one
// (and without WithDemoContext) the run fails fast with
// ErrContextUnavailable — capture is point-in-time and cannot be redone here.
func WithContext(cc *quill.CapturedContext) Option {
	return func(c *Coordinator) { c.capture = cc }
}

// WithDemoContext substitutes a deterministic offline context when no
// pre-captured context is supplied, for environments without capture
// permission.
func WithDemoContext() Option {
	return func(c *Coordinator) { c.demo = true }
}

// WithAutoInsert controls whether a successful run in an inserting mode
// delivers the reply into the focus target. Default true.
func WithAutoInsert(enabled bool) Option {
	return func(c *Coordinator) { c.autoInsert = enabled }
}

// WithObserver sets the observer receiving incremental and terminal results.
func WithObserver(o quill.Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithFocusTarget records where focus was when the run started.
func WithFocusTarget(t quill.FocusTarget) Option {
	return func(c *Coordinator) { c.focus = t }
}

// WithQuotaLowThreshold sets the remaining-quota level that triggers the
// quota-low notice.
func WithQuotaLowThreshold(n int) Option {
	return func(c *Coordinator) { c.quotaLow = n }
}

// WithExcludedApps sets glob patterns of applications whose captures must
// not be sent anywhere. A matching capture fails the run with
// ErrPermissionDenied and publishes a PermissionErrorNotice.
func WithExcludedApps(patterns []string) Option {
	return func(c *Coordinator) { c.excluded = patterns }
}

// Coordinator owns one run's lifecycle. Create it with New, begin it with
// Start, and request cancellation with Cancel. A Coordinator is not reused:
// one construction, at most one run.
//
// The run executes on its own goroutine; all run state is owned by that
// goroutine. The cancellation flag is the only cross-goroutine field and is
// write-once-true.
type Coordinator struct {
	id          string
	completer   quill.Completer
	gate        quill.Gate
	inserter    quill.Inserter
	recorder    quill.Recorder
	notifier    quill.Notifier
	logger      *zap.Logger
	observer    quill.Observer
	mode        quill.Mode
	tone        quill.Tone
	instruction string
	capture     *quill.CapturedContext
	focus       quill.FocusTarget
	excluded    []string
	autoInsert  bool
	demo        bool
	quotaLow    int

	started   atomic.Bool
	cancelled atomic.Bool
	state     atomic.Int32
	done      chan struct{}

	// run-goroutine-local accumulation
	reply  strings.Builder
	tokens int
}

// New creates a Coordinator for one run with the given user instruction.
func New(instruction string, deps Deps, opts ...Option) *Coordinator {
	c := &Coordinator{
		id:          uuid.NewString(),
		completer:   deps.Completer,
		gate:        deps.Gate,
		inserter:    deps.Inserter,
		recorder:    deps.Recorder,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		observer:    nopObserver{},
		mode:        quill.ModeCompose,
		instruction: instruction,
		autoInsert:  true,
		quotaLow:    defaultQuotaLowThreshold,
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	c.logger = c.logger.With(zap.String("run_id", c.id), zap.String("mode", string(c.mode)))
	return c
}

// ID returns the run's identifier.
func (c *Coordinator) ID() string { return c.id }

// State returns the run's current lifecycle state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Done returns a channel closed after the terminal observer callback has
// been delivered and telemetry closed.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Start begins the run asynchronously and returns immediately. Calling it
// again is a no-op.
func (c *Coordinator) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

// Cancel requests cooperative cancellation. Safe to call from any goroutine,
// any number of times, including after the run has terminated (no-op then).
// The flag is observed at the next suspension boundary; an in-flight network
// read is abandoned at that checkpoint, not torn down mid-read.
func (c *Coordinator) Cancel() {
	c.cancelled.Store(true)
}

// shouldAbort is the single cancellation predicate, checked immediately
// after every suspension point returns and before its result is acted on.
func (c *Coordinator) shouldAbort() bool {
	return c.cancelled.Load()
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

// run drives the state machine to a terminal state and delivers exactly one
// terminal observer callback.
func (c *Coordinator) run() {
	defer close(c.done)

	startedAt := time.Now()
	var app string
	if c.capture != nil {
		app = c.capture.App.Name
	}
	c.recorder.RunStarted(c.id, c.mode, app, startedAt)

	reply, err := c.execute(context.Background())

	outcome := quill.Classify(err)
	switch {
	case err == nil:
		c.setState(StateCompleted)
		c.logger.Debug("run completed", zap.Int("tokens", c.tokens))
		c.observer.DidComplete(reply)
	case errors.Is(err, quill.ErrCancelled):
		c.setState(StateCancelled)
		c.logger.Debug("run cancelled", zap.Int("tokens", c.tokens))
		c.observer.DidFail(err)
	default:
		c.setState(StateFailed)
		c.logger.Debug("run failed", zap.Error(err))
		c.observer.DidFail(err)
	}

	replyChars := 0
	if err == nil {
		replyChars = len(reply)
	}
	c.recorder.RunEnded(c.id, outcome, c.tokens, replyChars, time.Now())
}

// execute walks Validating → Gating → Streaming → Inserting. It returns the
// full reply on success; on any error the partial reply is discarded from
// the terminal report.
func (c *Coordinator) execute(ctx context.Context) (string, error) {
	// Validating. A context is either supplied pre-captured or substituted
	// by the demo fixture; the coordinator never invokes capture itself.
	c.setState(StateValidating)
	if c.capture == nil && c.demo {
		c.capture = capture.Demo()
	}
	if c.capture == nil {
		return "", quill.ErrContextUnavailable
	}
	if c.capture.Excluded(c.excluded) {
		c.notifier.Publish(quill.PermissionErrorNotice{App: c.capture.App.Name})
		return "", fmt.Errorf("%q is on the exclusion list: %w", c.capture.App.Name, quill.ErrPermissionDenied)
	}
	if c.shouldAbort() {
		return "", quill.ErrCancelled
	}

	tone := c.tone
	instruction := c.instruction
	if t, cleaned := quill.ParseToneDirective(instruction); t != quill.ToneNeutral {
		tone = t
		instruction = cleaned
	}

	// Gating. Business rejections are authoritative; a transport failure
	// reaching the gate is logged and swallowed — accounting hiccups must
	// not block the user's result.
	c.setState(StateGating)
	if c.gate != nil {
		decision, err := c.gate.Check(ctx, c.capture, c.mode)
		if c.shouldAbort() {
			return "", quill.ErrCancelled
		}
		if err != nil {
			c.logger.Warn("quota gate unreachable, proceeding", zap.Error(err))
		} else {
			switch decision.Kind {
			case quill.DecisionQuotaExceeded:
				c.notifier.Publish(quill.QuotaExceededNotice{})
				return "", quill.ErrQuotaExceeded
			case quill.DecisionTermsRequired:
				c.notifier.Publish(quill.TermsRequiredNotice{})
				return "", quill.ErrTermsRequired
			case quill.DecisionProceed:
				if decision.Remaining <= c.quotaLow {
					c.notifier.Publish(quill.QuotaLowNotice{Remaining: decision.Remaining})
				}
			}
		}
	}

	req := quill.Request{
		Mode:        c.mode,
		Tone:        tone,
		Instruction: instruction,
		Context:     c.capture,
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	// Streaming. The stream is single-pass and non-restartable: no
	// retry-on-token-loss, a transport error anywhere terminates the run.
	c.setState(StateStreaming)
	stream, err := c.completer.Open(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	for {
		evt, nextErr := stream.Next()
		if c.shouldAbort() {
			return "", quill.ErrCancelled
		}
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			return "", nextErr
		}
		switch e := evt.(type) {
		case quill.TokenEvent:
			c.reply.WriteString(e.Text)
			c.tokens++
			c.observer.DidReceive(e.Text)
		case quill.GroundingEvent:
			c.observer.DidReceiveGrounding(e.Metadata)
		}
	}

	reply := c.reply.String()

	// Inserting. Best-effort delivery: an insertion error is logged, the
	// run still completes with the full reply.
	if c.mode.InsertsReply() && c.autoInsert && c.inserter != nil {
		c.setState(StateInserting)
		if err := c.inserter.Insert(ctx, reply, c.focus); err != nil {
			c.logger.Warn("insertion failed", zap.Error(err))
		}
	}

	return reply, nil
}

type nopObserver struct{}

func (nopObserver) DidReceive(string)                           {}
func (nopObserver) DidReceiveGrounding(quill.GroundingMetadata) {}
func (nopObserver) DidComplete(string)                          {}
func (nopObserver) DidFail(error)                               {}

type nopRecorder struct{}

func (nopRecorder) RunStarted(string, quill.Mode, string, time.Time)    {}
func (nopRecorder) RunEnded(string, quill.Outcome, int, int, time.Time) {}

type nopNotifier struct{}

func (nopNotifier) Publish(quill.Notice) {}
