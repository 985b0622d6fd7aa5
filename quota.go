package quill

import "context"

// DecisionKind is the outcome of a quota-gate check.
type DecisionKind int

const (
	// DecisionProceed allows the run; Remaining reports quota left.
	DecisionProceed DecisionKind = iota
	// DecisionQuotaExceeded rejects the run: no quota remains.
	DecisionQuotaExceeded
	// DecisionTermsRequired rejects the run: the user must accept the
	// current terms of service first.
	DecisionTermsRequired
)

// QuotaDecision is the gate's verdict for one run. There are no states
// beyond the three DecisionKind values.
type QuotaDecision struct {
	Kind      DecisionKind
	Remaining int // meaningful only for DecisionProceed
}

// Proceed builds an allow decision with the given remaining quota.
func Proceed(remaining int) QuotaDecision {
	return QuotaDecision{Kind: DecisionProceed, Remaining: remaining}
}

// Gate authorizes a run before streaming begins. A business rejection is
// expressed through the decision; the error return is reserved for transport
// failures reaching the gate, which callers treat as non-fatal.
type Gate interface {
	Check(ctx context.Context, c *CapturedContext, mode Mode) (QuotaDecision, error)
}
