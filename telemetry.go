package quill

import "time"

// Outcome is the terminal telemetry tag for a run.
type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"
	OutcomeCancelled          Outcome = "cancelled"
	OutcomeQuotaExceeded      Outcome = "quota_exceeded"
	OutcomeTermsRequired      Outcome = "terms_required"
	OutcomeTransport          Outcome = "transport_error"
	OutcomeContextUnavailable Outcome = "context_unavailable"
	OutcomeMissingCredential  Outcome = "missing_credential"
	OutcomePermissionDenied   Outcome = "permission_denied"
)

// RunRecord is one row of run telemetry.
type RunRecord struct {
	ID         string
	Mode       Mode
	App        string
	Outcome    Outcome
	Tokens     int
	ReplyChars int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Recorder is the telemetry session for pipeline runs. It is a side channel:
// implementations must never block the run or surface errors into it, so the
// methods return nothing.
type Recorder interface {
	RunStarted(id string, mode Mode, app string, at time.Time)
	RunEnded(id string, outcome Outcome, tokens, replyChars int, at time.Time)
}
