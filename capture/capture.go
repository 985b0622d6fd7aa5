// Package capture provides captured-context fixtures for environments
// without screen-capture permission. Real capture and text recognition live
// outside this module; the pipeline only ever consumes a pre-captured
// snapshot.
package capture

import (
	"time"

	"github.com/quillab/quill"
)

// Demo returns a deterministic offline context substitute: a fixed mail
// draft snapshot with stable frames, latency, and timestamp, so demo runs
// and tests behave identically everywhere.
func Demo() *quill.CapturedContext {
	return &quill.CapturedContext{
		App: quill.AppInfo{
			Name:     "Mail",
			BundleID: "com.apple.mail",
			PID:      1,
		},
		Lines: []quill.TextLine{
			{Text: "Re: Project kickoff", X: 24, Y: 64, W: 320, H: 18, Confidence: 0.99},
			{Text: "Dear team,", X: 24, Y: 120, W: 140, H: 16, Confidence: 0.98},
		},
		Accessibility: &quill.AccessibilitySnapshot{
			Role:     "AXTextArea",
			Value:    "Dear team,",
			HasFocus: true,
		},
		CaptureLatency: 42 * time.Millisecond,
		CapturedAt:     time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC),
	}
}
