package render

import (
	"strings"
	"unicode"

	rw "github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Wrap greedily word-wraps plain text to the given display width. Unlike the
// markdown renderer it emits no ANSI codes, which keeps it safe for the
// live draft view where tokens arrive mid-word. Existing newlines are
// preserved; words wider than the width are broken.
func Wrap(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	paragraphs := strings.Split(s, "\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		out = append(out, wrapLine(p, width))
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) string {
	var (
		sb      strings.Builder
		current string
		word    string
	)
	flushWord := func() {
		if word == "" {
			return
		}
		switch {
		case current == "":
			current = word
		case uniseg.StringWidth(current)+1+uniseg.StringWidth(word) <= width:
			current += " " + word
		default:
			sb.WriteString(current)
			sb.WriteByte('\n')
			current = word
		}
		word = ""
	}
	for _, r := range line {
		if unicode.IsSpace(r) {
			flushWord()
			continue
		}
		// Break words that cannot fit on a line of their own.
		if uniseg.StringWidth(word)+rw.RuneWidth(r) > width {
			flushWord()
			if current != "" {
				sb.WriteString(current)
				sb.WriteByte('\n')
				current = ""
			}
		}
		word += string(r)
	}
	flushWord()
	sb.WriteString(current)
	return sb.String()
}
