package quill

// Notice is a sealed interface for fire-and-forget side-channel
// notifications consumed by UI layers. Notices are broadcast, never
// acknowledged, and never affect a run's control flow.
// The unexported marker method prevents external implementations.
type Notice interface {
	notice()
}

// QuotaLowNotice warns that remaining quota is at or below the threshold.
type QuotaLowNotice struct {
	Remaining int
}

func (QuotaLowNotice) notice() {}

// QuotaExceededNotice prompts the upgrade flow after a quota rejection.
type QuotaExceededNotice struct{}

func (QuotaExceededNotice) notice() {}

// TermsRequiredNotice prompts the terms-acceptance onboarding flow.
type TermsRequiredNotice struct{}

func (TermsRequiredNotice) notice() {}

// PermissionErrorNotice prompts the permissions onboarding flow when a
// capture cannot be used, e.g. the source app is on the exclusion list.
type PermissionErrorNotice struct {
	App string
}

func (PermissionErrorNotice) notice() {}

// Notifier publishes notices to whoever is listening. Publish must not
// block; slow or absent listeners lose notices.
type Notifier interface {
	Publish(n Notice)
}

// Interface compliance checks.
var (
	_ Notice = QuotaLowNotice{}
	_ Notice = QuotaExceededNotice{}
	_ Notice = TermsRequiredNotice{}
	_ Notice = PermissionErrorNotice{}
)
