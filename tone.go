package quill

import (
	"regexp"
	"strings"
)

// Tone is an optional style modifier applied to the generated reply.
type Tone string

const (
	ToneNeutral  Tone = ""
	ToneFormal   Tone = "formal"
	ToneFriendly Tone = "friendly"
	ToneConcise  Tone = "concise"
)

// toneDirective matches an inline tone override embedded in the draft,
// e.g. "#tone:formal". Parsed once, before the request is built.
var toneDirective = regexp.MustCompile(`#tone:([a-zA-Z]+)`)

// ParseToneDirective extracts a tone override from the draft text. It returns
// the tone named by the first directive and the draft with all directives
// stripped. When no directive is present it returns ToneNeutral and the
// draft unchanged.
func ParseToneDirective(draft string) (Tone, string) {
	m := toneDirective.FindStringSubmatch(draft)
	if m == nil {
		return ToneNeutral, draft
	}
	cleaned := toneDirective.ReplaceAllString(draft, "")
	cleaned = strings.ReplaceAll(cleaned, "  ", " ")
	return Tone(strings.ToLower(m[1])), strings.TrimSpace(cleaned)
}
