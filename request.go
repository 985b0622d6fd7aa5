package quill

import "fmt"

// Request carries one completion call: what to generate, in what style, and
// the captured context it should be grounded in. The Context pointer is
// borrowed read-only; completers must not mutate it.
type Request struct {
	Mode        Mode
	Tone        Tone
	Instruction string // the user's draft or question, tone directives stripped
	Context     *CapturedContext
	MaxTokens   int      // 0 = completer default
	Temperature *float64 // nil = completer default
}

// Validate checks universal constraints on Request. Completer
// implementations may apply additional backend-specific validation.
func (r Request) Validate() error {
	if err := r.Mode.Validate(); err != nil {
		return err
	}
	if r.Context == nil {
		return fmt.Errorf("request has no captured context: %w", ErrValidation)
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d: %w", r.MaxTokens, ErrValidation)
	}
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 2 {
			return fmt.Errorf("temperature must be in [0, 2], got %g: %w", *r.Temperature, ErrValidation)
		}
	}
	return nil
}
