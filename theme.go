package quill

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so the app
// automatically matches any color scheme.
type Theme struct {
	Draft     int // the user's draft text
	Reply     int // streamed reply text
	Grounding int // grounding source citations
	Error     int // error messages
	Success   int // completion indicators
	Muted     int // status line, placeholders
	Accent    int // headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Draft:     4,
		Reply:     -1,
		Grounding: 6,
		Error:     1,
		Success:   2,
		Muted:     8,
		Accent:    5,
	}
}
