package subscription

import "time"

// MergeSnapshot returns cur updated with the provider's view. The provider
// wins on status, billing period, trial end and the cancel flag. A local pause
// window is kept only while the provider still has collection paused, and a
// provider-side pause is adopted when it carries a resume date.
func MergeSnapshot(cur *Subscription, snap *ProviderSnapshot, now time.Time) (*Subscription, error) {
	next := cur.Clone()

	if !snap.CurrentPeriodStart.IsZero() {
		next.CurrentPeriodStart = snap.CurrentPeriodStart.UTC()
	}
	if !snap.CurrentPeriodEnd.IsZero() {
		next.CurrentPeriodEnd = snap.CurrentPeriodEnd.UTC()
	}
	next.CancelAtPeriodEnd = snap.CancelAtPeriodEnd

	switch {
	case !snap.CollectionPaused || next.CancelAtPeriodEnd:
		next.PausedAt = nil
		next.PauseEndsAt = nil
	case !next.IsPaused() && snap.PauseResumesAt != nil && snap.PauseResumesAt.After(now):
		pausedAt := now.UTC()
		endsAt := snap.PauseResumesAt.UTC()
		next.PausedAt = &pausedAt
		next.PauseEndsAt = &endsAt
	}

	if snap.Status.Valid() && snap.Status != StatusPaused {
		next.Status = snap.Status
	}
	switch {
	case next.Status == StatusActive && next.IsPaused():
		next.Status = StatusPaused
	case next.Status == StatusPaused && !next.IsPaused():
		next.Status = StatusActive
	}

	if next.Status == StatusTrialing && snap.TrialEnd != nil {
		trialEnd := snap.TrialEnd.UTC()
		next.TrialEndsAt = &trialEnd
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}
