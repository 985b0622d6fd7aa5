package quill

// Observer receives incremental and terminal results for one run.
//
// DidReceive and DidReceiveGrounding fire zero or more times, strictly
// sequentially and in stream order. Exactly one of DidComplete or DidFail
// fires per run, always last; cancellation is reported through DidFail with
// ErrCancelled. Callbacks may arrive on a non-UI goroutine — marshaling to a
// UI loop is the observer's responsibility.
type Observer interface {
	DidReceive(token string)
	DidReceiveGrounding(md GroundingMetadata)
	DidComplete(fullReply string)
	DidFail(err error)
}
