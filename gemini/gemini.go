// Package gemini implements [quill.Completer] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating between quill's
// domain types and the Gemini API types. Streaming uses the SDK's iter.Seq2
// iterator, wrapped into the pull-based [quill.Stream] interface. Ask-mode
// requests enable Google Search grounding, which is surfaced as a single
// [quill.GroundingEvent].
package gemini

const (
	defaultModel     = "gemini-3.1-pro-preview"
	defaultMaxTokens = 2048
	titleMaxTokens   = 64
)
