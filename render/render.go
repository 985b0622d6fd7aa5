// Package render turns completed replies into ANSI-styled terminal output.
// Markdown is parsed with goldmark and styled with lipgloss; grounding
// sources are formatted as a compact attribution list.
package render

import (
	"strings"

	"github.com/quillab/quill"
)

// Reply parses a markdown reply and returns ANSI-styled terminal output.
// Paragraphs, quotes and list items are word-wrapped to width. Code blocks
// are rendered at full width without reflow.
func Reply(source string, width int, theme quill.Theme) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	r := newRenderer(theme)
	return r.render([]byte(source), width)
}

// Sources formats grounding attribution as a muted list below the reply.
// Returns "" when the metadata carries no sources.
func Sources(md quill.GroundingMetadata, theme quill.Theme) string {
	if len(md.Sources) == 0 {
		return ""
	}
	r := newRenderer(theme)
	var sb strings.Builder
	sb.WriteString(r.grounding.Render("Sources"))
	for _, src := range md.Sources {
		sb.WriteString("\n")
		title := src.Title
		if title == "" {
			title = src.URI
		}
		sb.WriteString("  " + r.grounding.Render("•") + " " + title)
		if src.URI != "" && src.Title != "" {
			sb.WriteString(" " + r.muted.Render("("+src.URI+")"))
		}
	}
	return sb.String()
}
