package quill

import "context"

// Stream is a pull-based iterator over completion events. It is single-pass
// and non-restartable: once Next returns io.EOF or an error, the stream is
// finished and no retry is possible. Cancellation flows through the context
// passed to Completer.Open; an in-flight Next is abandoned, not torn down.
//
// Next returns the next event, io.EOF on normal completion, or a transport
// error. Close releases the underlying connection and is safe to call at any
// point, including after Next has returned a terminal result.
type Stream interface {
	Next() (StreamEvent, error)
	Close() error
}

// Completer is a strategy pattern interface for streaming completion
// backends. Open sends the request and returns a Stream of reply events.
type Completer interface {
	Open(ctx context.Context, req Request) (Stream, error)
}
