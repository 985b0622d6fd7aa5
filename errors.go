package quill

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the run failure taxonomy.
var (
	// ErrContextUnavailable indicates no captured context was supplied.
	// Capture is point-in-time, so this is never retried.
	ErrContextUnavailable = errors.New("captured context unavailable")

	// ErrCancelled indicates cooperative cancellation was observed at a
	// checkpoint.
	ErrCancelled = errors.New("run cancelled")

	// ErrQuotaExceeded indicates the quota gate rejected the run, or a
	// streaming transport error was identified as a quota rejection.
	ErrQuotaExceeded = errors.New("usage quota exceeded")

	// ErrTermsRequired indicates the gate requires the user to accept the
	// current terms of service before proceeding.
	ErrTermsRequired = errors.New("terms of service acceptance required")

	// ErrMissingCredential indicates a required provider credential was
	// not supplied at construction time.
	ErrMissingCredential = errors.New("missing provider credential")

	// ErrPermissionDenied indicates the captured context may not be used,
	// e.g. its application is on the privacy exclusion list.
	ErrPermissionDenied = errors.New("capture not permitted")

	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")
)

// TransportError is a network or protocol failure from the gate or the
// streaming completion client. Status is the HTTP status code when one was
// received, zero otherwise.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("transport error: HTTP %d: %s", e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("transport error: HTTP %d", e.Status)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// quotaMarkers are body substrings that identify a quota rejection arriving
// through the streaming transport rather than the gate.
var quotaMarkers = []string{"quota", "rate limit", "resource_exhausted", "resource exhausted"}

// IsQuotaSignal reports whether err is a transport error that actually
// represents a quota rejection: HTTP 429 with a quota-indicating body.
func IsQuotaSignal(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.Status != http.StatusTooManyRequests {
		return false
	}
	body := strings.ToLower(te.Body)
	for _, m := range quotaMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// Classify maps a run error to its terminal telemetry outcome tag. The kind
// delivered to the observer is the error itself; Classify exists only for
// telemetry bookkeeping.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrCancelled):
		return OutcomeCancelled
	case errors.Is(err, ErrQuotaExceeded), IsQuotaSignal(err):
		return OutcomeQuotaExceeded
	case errors.Is(err, ErrTermsRequired):
		return OutcomeTermsRequired
	case errors.Is(err, ErrContextUnavailable):
		return OutcomeContextUnavailable
	case errors.Is(err, ErrMissingCredential):
		return OutcomeMissingCredential
	case errors.Is(err, ErrPermissionDenied):
		return OutcomePermissionDenied
	default:
		return OutcomeTransport
	}
}
