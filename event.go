package quill

// StreamEvent is a sealed interface representing one element of a completion
// stream. Events are purely semantic. Transport/protocol errors come from
// Next()'s error return, not from events; normal end of stream is io.EOF.
// The unexported marker method prevents external implementations.
type StreamEvent interface {
	streamEvent()
}

// TokenEvent carries one text fragment of the reply, in arrival order.
type TokenEvent struct {
	Text string
}

func (TokenEvent) streamEvent() {}

// GroundingEvent carries citation/source metadata attached to the reply.
// At most one is emitted per stream; it is orthogonal to the reply text.
type GroundingEvent struct {
	Metadata GroundingMetadata
}

func (GroundingEvent) streamEvent() {}

// GroundingMetadata describes the sources a grounded reply drew on.
type GroundingMetadata struct {
	Sources       []GroundingSource
	SearchQueries []string
}

// GroundingSource is a single cited source.
type GroundingSource struct {
	Title string
	URI   string
}

// Interface compliance checks.
var (
	_ StreamEvent = TokenEvent{}
	_ StreamEvent = GroundingEvent{}
)
