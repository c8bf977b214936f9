package tracker

import "time"

// Hook names reported to an Observer.
const (
	HookEdit     = "edit"
	HookFavorite = "favorite"
)

// Outcomes reported to an Observer.
const (
	OutcomeHandled  = "handled"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Observer receives counters from the dispatcher and the recompute pass.
type Observer interface {
	HookEvent(hook, outcome string)
	RecomputeFile(outcome string)
	RecomputeRun(duration time.Duration, remaining int64)
}

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) HookEvent(string, string)          {}
func (NopObserver) RecomputeFile(string)              {}
func (NopObserver) RecomputeRun(time.Duration, int64) {}
