package pipeline

// State is the lifecycle state of a run. Transitions are linear —
// Idle, Validating, Gating, Streaming, Inserting — ending in exactly one of
// the three terminal states.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateGating
	StateStreaming
	StateInserting
	StateCompleted
	StateFailed
	StateCancelled
)

// Terminal reports whether no further transitions or callbacks can occur.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateGating:
		return "gating"
	case StateStreaming:
		return "streaming"
	case StateInserting:
		return "inserting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
