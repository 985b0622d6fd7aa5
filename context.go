// Package quill defines the domain types for the on-screen writing-assist
// pipeline: captured screen context, streaming completion events, quota
// gating, insertion, and the observer contract used by the pipeline
// coordinator.
package quill

import (
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// maxCompactChars caps the serialized context sent over the network. When the
// recognized text exceeds the cap, the tail is kept: the text nearest the
// user's insertion point is the most relevant.
const maxCompactChars = 6000

// AppInfo identifies the frontmost application at capture time.
type AppInfo struct {
	Name     string
	BundleID string
	PID      int
}

// TextLine is a single recognized line of on-screen text with its bounding
// frame in screen coordinates and the recognizer's confidence.
type TextLine struct {
	Text       string
	X, Y, W, H float64
	Confidence float64
}

// AccessibilitySnapshot is the optional accessibility enrichment of a
// capture: the focused element's role and value, and any selected text.
type AccessibilitySnapshot struct {
	Role         string
	Value        string
	SelectedText string
	HasFocus     bool
}

// FocusTarget records where input focus was when the run started so the
// inserter can restore it before delivering text.
type FocusTarget struct {
	App         AppInfo
	ElementRole string
}

// CapturedContext is an immutable snapshot of the user's on-screen context.
// The pipeline borrows it read-only for the duration of one run; it is never
// mutated after capture.
type CapturedContext struct {
	App            AppInfo
	Lines          []TextLine
	Accessibility  *AccessibilitySnapshot
	CaptureLatency time.Duration
	CapturedAt     time.Time
}

// CompactText serializes the recognized text into the compact form sent to
// the completion service: lines joined by newlines, runs of whitespace
// collapsed, truncated from the front to maxCompactChars.
func (c *CapturedContext) CompactText() string {
	var b strings.Builder
	for i, line := range c.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(collapseSpaces(line.Text))
	}
	s := b.String()
	if len(s) > maxCompactChars {
		s = s[len(s)-maxCompactChars:]
		// Avoid starting mid-line after the cut.
		if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
			s = s[i+1:]
		}
	}
	return s
}

// Excluded reports whether the capture's application matches any of the
// given glob patterns. Patterns are matched case-insensitively against both
// the app name and the bundle identifier.
func (c *CapturedContext) Excluded(patterns []string) bool {
	name := strings.ToLower(c.App.Name)
	bundle := strings.ToLower(c.App.BundleID)
	for _, p := range patterns {
		p = strings.ToLower(p)
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(p, bundle); err == nil && ok {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
