package pipeline_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quillab/quill"
	"github.com/quillab/quill/mock"
	"github.com/quillab/quill/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mailContext returns the capture fixture used throughout: a mail draft.
func mailContext() *quill.CapturedContext {
	return &quill.CapturedContext{
		App:   quill.AppInfo{Name: "Mail", BundleID: "com.apple.mail"},
		Lines: []quill.TextLine{{Text: "Dear team,"}},
	}
}

// tokenStream returns a mock stream that yields the given tokens in order,
// then io.EOF.
func tokenStream(tokens ...string) *mock.Stream {
	i := 0
	return &mock.Stream{
		NextFn: func() (quill.StreamEvent, error) {
			if i >= len(tokens) {
				return nil, io.EOF
			}
			tok := tokens[i]
			i++
			return quill.TokenEvent{Text: tok}, nil
		},
	}
}

// streamCompleter wraps a stream factory into a mock completer that counts
// Open calls.
func streamCompleter(opens *atomic.Int64, fn func(req quill.Request) (quill.Stream, error)) *mock.Completer {
	return &mock.Completer{
		OpenFn: func(_ context.Context, req quill.Request) (quill.Stream, error) {
			if opens != nil {
				opens.Add(1)
			}
			return fn(req)
		},
	}
}

func proceedGate(remaining int) *mock.Gate {
	return &mock.Gate{
		CheckFn: func(context.Context, *quill.CapturedContext, quill.Mode) (quill.QuotaDecision, error) {
			return quill.Proceed(remaining), nil
		},
	}
}

// terminalCounter wires an observer that records callbacks and counts
// terminal deliveries.
type terminalCounter struct {
	tokens    []string
	grounding []quill.GroundingMetadata
	completed []string
	failed    []error
	terminals int
}

func (tc *terminalCounter) observer() *mock.Observer {
	return &mock.Observer{
		DidReceiveFn:          func(tok string) { tc.tokens = append(tc.tokens, tok) },
		DidReceiveGroundingFn: func(md quill.GroundingMetadata) { tc.grounding = append(tc.grounding, md) },
		DidCompleteFn: func(reply string) {
			tc.completed = append(tc.completed, reply)
			tc.terminals++
		},
		DidFailFn: func(err error) {
			tc.failed = append(tc.failed, err)
			tc.terminals++
		},
	}
}

func runAndWait(t *testing.T, c *pipeline.Coordinator) {
	t.Helper()
	c.Start()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not reach a terminal state")
	}
}

func TestCoordinator_ComposeScenario(t *testing.T) {
	t.Parallel()

	var (
		tc       terminalCounter
		opens    atomic.Int64
		inserted []string
	)
	completer := streamCompleter(&opens, func(req quill.Request) (quill.Stream, error) {
		return tokenStream("Thanks ", "for ", "reaching out."), nil
	})
	inserter := &mock.Inserter{
		InsertFn: func(_ context.Context, text string, _ quill.FocusTarget) error {
			inserted = append(inserted, text)
			return nil
		},
	}

	c := pipeline.New("reply to this email",
		pipeline.Deps{Completer: completer, Gate: proceedGate(5), Inserter: inserter},
		pipeline.WithMode(quill.ModeCompose),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	assert.Equal(t, []string{"Thanks ", "for ", "reaching out."}, tc.tokens)
	require.Equal(t, []string{"Thanks for reaching out."}, inserted)
	require.Equal(t, []string{"Thanks for reaching out."}, tc.completed)
	assert.Empty(t, tc.failed)
	assert.Equal(t, 1, tc.terminals, "exactly one terminal callback")
	assert.Equal(t, pipeline.StateCompleted, c.State())
	assert.Equal(t, int64(1), opens.Load())
}

func TestCoordinator_TokenOrdering(t *testing.T) {
	t.Parallel()

	tokens := []string{"a", "b", "c", "d", "e", "f", "g"}
	var tc terminalCounter
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream(tokens...), nil
	})

	c := pipeline.New("go on",
		pipeline.Deps{Completer: completer},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	assert.Equal(t, tokens, tc.tokens)
	require.Len(t, tc.completed, 1)
	assert.Equal(t, "abcdefg", tc.completed[0], "full reply equals token concatenation")
}

func TestCoordinator_QuotaShortCircuit(t *testing.T) {
	t.Parallel()

	var (
		tc      terminalCounter
		opens   atomic.Int64
		notices []quill.Notice
	)
	completer := streamCompleter(&opens, func(quill.Request) (quill.Stream, error) {
		return tokenStream("never"), nil
	})
	gate := &mock.Gate{
		CheckFn: func(context.Context, *quill.CapturedContext, quill.Mode) (quill.QuotaDecision, error) {
			return quill.QuotaDecision{Kind: quill.DecisionQuotaExceeded}, nil
		},
	}
	notifier := &mock.Notifier{PublishFn: func(n quill.Notice) { notices = append(notices, n) }}

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Gate: gate, Notifier: notifier},
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	assert.Equal(t, int64(0), opens.Load(), "streaming client must never be invoked")
	require.Len(t, tc.failed, 1)
	assert.ErrorIs(t, tc.failed[0], quill.ErrQuotaExceeded)
	assert.Equal(t, 1, tc.terminals)
	assert.Equal(t, []quill.Notice{quill.QuotaExceededNotice{}}, notices)
	assert.Equal(t, pipeline.StateFailed, c.State())
}

func TestCoordinator_TermsRequired(t *testing.T) {
	t.Parallel()

	var (
		tc      terminalCounter
		notices []quill.Notice
	)
	gate := &mock.Gate{
		CheckFn: func(context.Context, *quill.CapturedContext, quill.Mode) (quill.QuotaDecision, error) {
			return quill.QuotaDecision{Kind: quill.DecisionTermsRequired}, nil
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		t.Error("completer must not be invoked")
		return nil, errors.New("unreachable")
	})
	notifier := &mock.Notifier{PublishFn: func(n quill.Notice) { notices = append(notices, n) }}

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Gate: gate, Notifier: notifier},
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Len(t, tc.failed, 1)
	assert.ErrorIs(t, tc.failed[0], quill.ErrTermsRequired)
	assert.Equal(t, []quill.Notice{quill.TermsRequiredNotice{}}, notices)
}

func TestCoordinator_GateTransportErrorTolerated(t *testing.T) {
	t.Parallel()

	var tc terminalCounter
	gate := &mock.Gate{
		CheckFn: func(context.Context, *quill.CapturedContext, quill.Mode) (quill.QuotaDecision, error) {
			return quill.QuotaDecision{}, &quill.TransportError{Err: errors.New("connection refused")}
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream("still ", "works"), nil
	})

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Gate: gate},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Len(t, tc.completed, 1)
	assert.Equal(t, "still works", tc.completed[0])
	assert.Empty(t, tc.failed, "gate transport errors must not fail the run")
}

func TestCoordinator_CancelDuringStream(t *testing.T) {
	t.Parallel()

	var (
		tc      terminalCounter
		inserts atomic.Int64
	)
	inserter := &mock.Inserter{
		InsertFn: func(context.Context, string, quill.FocusTarget) error {
			inserts.Add(1)
			return nil
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream("one ", "two ", "three ", "four"), nil
	})

	var c *pipeline.Coordinator
	obs := tc.observer()
	obs.DidReceiveFn = func(tok string) {
		tc.tokens = append(tc.tokens, tok)
		if len(tc.tokens) == 2 {
			c.Cancel()
		}
	}

	c = pipeline.New("hi",
		pipeline.Deps{Completer: completer, Inserter: inserter},
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(obs),
	)
	runAndWait(t, c)

	assert.Equal(t, []string{"one ", "two "}, tc.tokens, "no token delivered after cancellation")
	require.Len(t, tc.failed, 1)
	assert.ErrorIs(t, tc.failed[0], quill.ErrCancelled)
	assert.Equal(t, 1, tc.terminals)
	assert.Equal(t, int64(0), inserts.Load(), "insertion sink never invoked after cancel")
	assert.Equal(t, pipeline.StateCancelled, c.State())
}

func TestCoordinator_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	var (
		tc    terminalCounter
		opens atomic.Int64
	)
	completer := streamCompleter(&opens, func(quill.Request) (quill.Stream, error) {
		return tokenStream("nope"), nil
	})

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer},
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	c.Cancel()
	runAndWait(t, c)

	assert.Equal(t, int64(0), opens.Load())
	require.Len(t, tc.failed, 1)
	assert.ErrorIs(t, tc.failed[0], quill.ErrCancelled)
}

func TestCoordinator_IdempotentCancel(t *testing.T) {
	t.Parallel()

	var tc terminalCounter
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream("ok"), nil
	})

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)
	require.Equal(t, 1, tc.terminals)

	// Cancel after terminal completion is a no-op: no further callbacks,
	// state unchanged.
	c.Cancel()
	c.Cancel()
	assert.Equal(t, 1, tc.terminals)
	assert.Equal(t, pipeline.StateCompleted, c.State())
}

func TestCoordinator_NoInsertionInAskMode(t *testing.T) {
	t.Parallel()

	var (
		tc      terminalCounter
		inserts atomic.Int64
	)
	inserter := &mock.Inserter{
		InsertFn: func(context.Context, string, quill.FocusTarget) error {
			inserts.Add(1)
			return nil
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream("It is a mail draft."), nil
	})

	c := pipeline.New("what is on my screen?",
		pipeline.Deps{Completer: completer, Inserter: inserter},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Len(t, tc.completed, 1)
	assert.Equal(t, int64(0), inserts.Load())
}

func TestCoordinator_AutoInsertDisabled(t *testing.T) {
	t.Parallel()

	var inserts atomic.Int64
	inserter := &mock.Inserter{
		InsertFn: func(context.Context, string, quill.FocusTarget) error {
			inserts.Add(1)
			return nil
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream("draft"), nil
	})

	var tc terminalCounter
	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Inserter: inserter},
		pipeline.WithContext(mailContext()),
		pipeline.WithAutoInsert(false),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Len(t, tc.completed, 1)
	assert.Equal(t, int64(0), inserts.Load())
}

func TestCoordinator_StreamTransportErrorDiscardsPartial(t *testing.T) {
	t.Parallel()

	var (
		tc      terminalCounter
		inserts atomic.Int64
	)
	transportErr := &quill.TransportError{Err: errors.New("connection reset")}
	i := 0
	stream := &mock.Stream{
		NextFn: func() (quill.StreamEvent, error) {
			if i < 2 {
				i++
				return quill.TokenEvent{Text: "part "}, nil
			}
			return nil, transportErr
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return stream, nil
	})
	inserter := &mock.Inserter{
		InsertFn: func(context.Context, string, quill.FocusTarget) error {
			inserts.Add(1)
			return nil
		},
	}

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Inserter: inserter},
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	assert.Len(t, tc.tokens, 2, "tokens before the failure were delivered")
	assert.Empty(t, tc.completed, "partial reply is not reported as a completion")
	require.Len(t, tc.failed, 1)
	var te *quill.TransportError
	assert.ErrorAs(t, tc.failed[0], &te, "observer receives the raw error")
	assert.Equal(t, int64(0), inserts.Load())
}

func TestCoordinator_StreamQuotaErrorClassifiedForTelemetry(t *testing.T) {
	t.Parallel()

	var outcomes []quill.Outcome
	recorder := &mock.Recorder{
		RunEndedFn: func(_ string, outcome quill.Outcome, _, _ int, _ time.Time) {
			outcomes = append(outcomes, outcome)
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return nil, &quill.TransportError{Status: 429, Body: `{"error":"quota exhausted"}`}
	})

	var tc terminalCounter
	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Recorder: recorder},
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Len(t, tc.failed, 1)
	assert.Equal(t, []quill.Outcome{quill.OutcomeQuotaExceeded}, outcomes,
		"429 quota body maps to the quota outcome tag even via the stream")
}

func TestCoordinator_ContextUnavailable(t *testing.T) {
	t.Parallel()

	var (
		tc    terminalCounter
		opens atomic.Int64
	)
	completer := streamCompleter(&opens, func(quill.Request) (quill.Stream, error) {
		return tokenStream("x"), nil
	})

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer},
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	assert.Equal(t, int64(0), opens.Load())
	require.Len(t, tc.failed, 1)
	assert.ErrorIs(t, tc.failed[0], quill.ErrContextUnavailable)
}

func TestCoordinator_DemoContextSubstitute(t *testing.T) {
	t.Parallel()

	var (
		tc      terminalCounter
		seenApp string
	)
	completer := streamCompleter(nil, func(req quill.Request) (quill.Stream, error) {
		seenApp = req.Context.App.Name
		return tokenStream("demo reply"), nil
	})

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithDemoContext(),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Len(t, tc.completed, 1)
	assert.Equal(t, "Mail", seenApp)
}

func TestCoordinator_ExcludedApp(t *testing.T) {
	t.Parallel()

	var (
		tc      terminalCounter
		opens   atomic.Int64
		notices []quill.Notice
	)
	completer := streamCompleter(&opens, func(quill.Request) (quill.Stream, error) {
		return tokenStream("x"), nil
	})
	notifier := &mock.Notifier{PublishFn: func(n quill.Notice) { notices = append(notices, n) }}

	cc := mailContext()
	cc.App.Name = "1Password 8"

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Notifier: notifier},
		pipeline.WithContext(cc),
		pipeline.WithExcludedApps([]string{"1password*"}),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	assert.Equal(t, int64(0), opens.Load())
	require.Len(t, tc.failed, 1)
	assert.ErrorIs(t, tc.failed[0], quill.ErrPermissionDenied)
	assert.Equal(t, []quill.Notice{quill.PermissionErrorNotice{App: "1Password 8"}}, notices)
}

func TestCoordinator_ToneDirectiveOverride(t *testing.T) {
	t.Parallel()

	var got quill.Request
	completer := streamCompleter(nil, func(req quill.Request) (quill.Stream, error) {
		got = req
		return tokenStream("ok"), nil
	})

	var tc terminalCounter
	c := pipeline.New("make this nicer #tone:formal please",
		pipeline.Deps{Completer: completer},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithTone(quill.ToneFriendly),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	assert.Equal(t, quill.ToneFormal, got.Tone, "embedded directive overrides configured tone")
	assert.Equal(t, "make this nicer please", got.Instruction)
}

func TestCoordinator_QuotaLowNotice(t *testing.T) {
	t.Parallel()

	var notices []quill.Notice
	notifier := &mock.Notifier{PublishFn: func(n quill.Notice) { notices = append(notices, n) }}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream("ok"), nil
	})

	var tc terminalCounter
	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Gate: proceedGate(2), Notifier: notifier},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Len(t, tc.completed, 1)
	assert.Equal(t, []quill.Notice{quill.QuotaLowNotice{Remaining: 2}}, notices)
}

func TestCoordinator_InsertionFailureStillCompletes(t *testing.T) {
	t.Parallel()

	var tc terminalCounter
	inserter := &mock.Inserter{
		InsertFn: func(context.Context, string, quill.FocusTarget) error {
			return errors.New("focus target vanished")
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream("the ", "reply"), nil
	})

	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Inserter: inserter},
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Equal(t, []string{"the reply"}, tc.completed)
	assert.Empty(t, tc.failed, "insertion is best-effort, not a correctness gate")
	assert.Equal(t, pipeline.StateCompleted, c.State())
}

func TestCoordinator_GroundingForwardedNotAccumulated(t *testing.T) {
	t.Parallel()

	md := quill.GroundingMetadata{
		Sources:       []quill.GroundingSource{{Title: "Docs", URI: "https://example.com"}},
		SearchQueries: []string{"example"},
	}
	events := []quill.StreamEvent{
		quill.TokenEvent{Text: "grounded "},
		quill.GroundingEvent{Metadata: md},
		quill.TokenEvent{Text: "reply"},
	}
	i := 0
	stream := &mock.Stream{
		NextFn: func() (quill.StreamEvent, error) {
			if i >= len(events) {
				return nil, io.EOF
			}
			evt := events[i]
			i++
			return evt, nil
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return stream, nil
	})

	var tc terminalCounter
	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Equal(t, []quill.GroundingMetadata{md}, tc.grounding)
	require.Len(t, tc.completed, 1)
	assert.Equal(t, "grounded reply", tc.completed[0], "metadata does not affect accumulation")
}

func TestCoordinator_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	var opens atomic.Int64
	completer := streamCompleter(&opens, func(quill.Request) (quill.Stream, error) {
		return tokenStream("once"), nil
	})

	var tc terminalCounter
	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer},
		pipeline.WithMode(quill.ModeAsk),
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	c.Start()
	c.Start()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	assert.Equal(t, int64(1), opens.Load())
	assert.Equal(t, 1, tc.terminals)
}

func TestCoordinator_TelemetryLifecycle(t *testing.T) {
	t.Parallel()

	var (
		startedIDs []string
		ended      []quill.Outcome
		tokens     int
	)
	recorder := &mock.Recorder{
		RunStartedFn: func(id string, mode quill.Mode, app string, _ time.Time) {
			startedIDs = append(startedIDs, id)
			assert.Equal(t, quill.ModeCompose, mode)
			assert.Equal(t, "Mail", app)
		},
		RunEndedFn: func(id string, outcome quill.Outcome, tok, _ int, _ time.Time) {
			ended = append(ended, outcome)
			tokens = tok
		},
	}
	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return tokenStream("a", "b", "c"), nil
	})

	var tc terminalCounter
	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Recorder: recorder},
		pipeline.WithContext(mailContext()),
		pipeline.WithAutoInsert(false),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Equal(t, []string{c.ID()}, startedIDs)
	assert.Equal(t, []quill.Outcome{quill.OutcomeCompleted}, ended)
	assert.Equal(t, 3, tokens)
}

func TestCoordinator_MissingCredentialSurfaced(t *testing.T) {
	t.Parallel()

	completer := streamCompleter(nil, func(quill.Request) (quill.Stream, error) {
		return nil, quill.ErrMissingCredential
	})

	var (
		tc       terminalCounter
		outcomes []quill.Outcome
	)
	recorder := &mock.Recorder{
		RunEndedFn: func(_ string, outcome quill.Outcome, _, _ int, _ time.Time) {
			outcomes = append(outcomes, outcome)
		},
	}
	c := pipeline.New("hi",
		pipeline.Deps{Completer: completer, Recorder: recorder},
		pipeline.WithContext(mailContext()),
		pipeline.WithObserver(tc.observer()),
	)
	runAndWait(t, c)

	require.Len(t, tc.failed, 1)
	assert.ErrorIs(t, tc.failed[0], quill.ErrMissingCredential)
	assert.Equal(t, []quill.Outcome{quill.OutcomeMissingCredential}, outcomes)
}
