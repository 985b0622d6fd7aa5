// Package mock provides test doubles for quill interfaces using function
// fields. Functions that must be scripted panic when nil to catch missing
// setup; side-channel doubles (Recorder, Notifier, Observer) are nil-safe
// because most tests only care about a subset of callbacks.
package mock

import (
	"context"
	"time"

	"github.com/quillab/quill"
)

// Interface compliance checks.
var (
	_ quill.Completer = (*Completer)(nil)
	_ quill.Stream    = (*Stream)(nil)
	_ quill.Gate      = (*Gate)(nil)
	_ quill.Inserter  = (*Inserter)(nil)
	_ quill.Recorder  = (*Recorder)(nil)
	_ quill.Notifier  = (*Notifier)(nil)
	_ quill.Observer  = (*Observer)(nil)
)

// Completer is a test double for quill.Completer.
// Set OpenFn before calling Open.
type Completer struct {
	OpenFn func(ctx context.Context, req quill.Request) (quill.Stream, error)
}

// Open delegates to OpenFn.
func (c *Completer) Open(ctx context.Context, req quill.Request) (quill.Stream, error) {
	return c.OpenFn(ctx, req)
}

// Stream is a test double for quill.Stream. NextFn panics when nil; CloseFn
// is nil-safe because test code commonly calls defer stream.Close().
type Stream struct {
	NextFn  func() (quill.StreamEvent, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (quill.StreamEvent, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Gate is a test double for quill.Gate.
// Set CheckFn before calling Check.
type Gate struct {
	CheckFn func(ctx context.Context, c *quill.CapturedContext, mode quill.Mode) (quill.QuotaDecision, error)
}

// Check delegates to CheckFn.
func (g *Gate) Check(ctx context.Context, c *quill.CapturedContext, mode quill.Mode) (quill.QuotaDecision, error) {
	return g.CheckFn(ctx, c, mode)
}

// Inserter is a test double for quill.Inserter.
// Set InsertFn before calling Insert.
type Inserter struct {
	InsertFn func(ctx context.Context, text string, target quill.FocusTarget) error
}

// Insert delegates to InsertFn.
func (i *Inserter) Insert(ctx context.Context, text string, target quill.FocusTarget) error {
	return i.InsertFn(ctx, text, target)
}

// Recorder is a nil-safe test double for quill.Recorder.
type Recorder struct {
	RunStartedFn func(id string, mode quill.Mode, app string, at time.Time)
	RunEndedFn   func(id string, outcome quill.Outcome, tokens, replyChars int, at time.Time)
}

// RunStarted delegates to RunStartedFn when set.
func (r *Recorder) RunStarted(id string, mode quill.Mode, app string, at time.Time) {
	if r.RunStartedFn != nil {
		r.RunStartedFn(id, mode, app, at)
	}
}

// RunEnded delegates to RunEndedFn when set.
func (r *Recorder) RunEnded(id string, outcome quill.Outcome, tokens, replyChars int, at time.Time) {
	if r.RunEndedFn != nil {
		r.RunEndedFn(id, outcome, tokens, replyChars, at)
	}
}

// Notifier is a nil-safe test double for quill.Notifier.
type Notifier struct {
	PublishFn func(n quill.Notice)
}

// Publish delegates to PublishFn when set.
func (n *Notifier) Publish(notice quill.Notice) {
	if n.PublishFn != nil {
		n.PublishFn(notice)
	}
}

// Observer is a nil-safe test double for quill.Observer.
type Observer struct {
	DidReceiveFn          func(token string)
	DidReceiveGroundingFn func(md quill.GroundingMetadata)
	DidCompleteFn         func(fullReply string)
	DidFailFn             func(err error)
}

// DidReceive delegates to DidReceiveFn when set.
func (o *Observer) DidReceive(token string) {
	if o.DidReceiveFn != nil {
		o.DidReceiveFn(token)
	}
}

// DidReceiveGrounding delegates to DidReceiveGroundingFn when set.
func (o *Observer) DidReceiveGrounding(md quill.GroundingMetadata) {
	if o.DidReceiveGroundingFn != nil {
		o.DidReceiveGroundingFn(md)
	}
}

// DidComplete delegates to DidCompleteFn when set.
func (o *Observer) DidComplete(fullReply string) {
	if o.DidCompleteFn != nil {
		o.DidCompleteFn(fullReply)
	}
}

// DidFail delegates to DidFailFn when set.
func (o *Observer) DidFail(err error) {
	if o.DidFailFn != nil {
		o.DidFailFn(err)
	}
}
