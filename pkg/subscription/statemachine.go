package subscription

import (
	"fmt"
	"time"
)

// Decision is the outcome of Decide: the state to persist and the gateway calls
// that must succeed, in order, before it may be persisted.
type Decision struct {
	Transition Transition
	Current    *Subscription
	Next       *Subscription
	Calls      []GatewayCall

	pausedAt    time.Time
	pauseEndsAt time.Time
}

// PauseEndsAt returns the end of the pause window for a Pause decision.
func (d Decision) PauseEndsAt() time.Time {
	return d.pauseEndsAt
}

// Partial returns the local state once the first n gateway calls have succeeded.
// Partial(len(d.Calls)) equals d.Next.
func (d Decision) Partial(n int) *Subscription {
	s := d.Current.Clone()
	for _, call := range d.Calls[:min(n, len(d.Calls))] {
		d.apply(s, call)
	}
	return s
}

func (d Decision) apply(s *Subscription, call GatewayCall) {
	switch call {
	case CallPauseCollection:
		pausedAt, endsAt := d.pausedAt, d.pauseEndsAt
		s.PausedAt = &pausedAt
		s.PauseEndsAt = &endsAt
		s.Status = StatusPaused
	case CallResumeCollection:
		s.PausedAt = nil
		s.PauseEndsAt = nil
		if s.Status == StatusPaused {
			s.Status = StatusActive
		}
	case CallCancelAtPeriodEnd:
		s.CancelAtPeriodEnd = true
	case CallResumeAutoRenew:
		s.CancelAtPeriodEnd = false
	}
}

// Decide validates tr against the current state and computes the intent.
// It performs no I/O; the caller executes the calls and persists Next.
func Decide(current *Subscription, tr Transition, now time.Time) (Decision, error) {
	d := Decision{Transition: tr, Current: current}

	switch t := tr.(type) {
	case Pause:
		if t.Months < MinPauseMonths || t.Months > MaxPauseMonths {
			return Decision{}, ErrInvalidPauseDuration
		}
		switch {
		case current.IsTrialing():
			return Decision{}, ErrTrialCannotPause
		case !current.HasBillingRef():
			return Decision{}, ErrNoBillingReference
		case current.IsPaused():
			return Decision{}, ErrAlreadyPaused
		case current.CancelAtPeriodEnd:
			return Decision{}, ErrAlreadyCancelling
		case current.Status != StatusActive:
			return Decision{}, fmt.Errorf("%w: status is %s", ErrNotActive, current.Status)
		}
		d.pausedAt = now.UTC()
		d.pauseEndsAt = d.pausedAt.AddDate(0, t.Months, 0)
		d.Calls = []GatewayCall{CallPauseCollection}

	case Resume:
		if !current.IsPaused() {
			return Decision{}, ErrNotPaused
		}
		if !current.HasBillingRef() {
			return Decision{}, ErrNoBillingReference
		}
		d.Calls = []GatewayCall{CallResumeCollection}

	case Cancel:
		switch {
		case !current.HasBillingRef():
			return Decision{}, ErrNoBillingReference
		case current.CancelAtPeriodEnd:
			return Decision{}, ErrAlreadyCancelling
		case current.Status == StatusCanceled:
			return Decision{}, fmt.Errorf("%w: status is %s", ErrNotActive, current.Status)
		}
		// The provider keeps a collection pause across cancel_at_period_end,
		// so the pause is lifted first.
		if current.IsPaused() {
			d.Calls = append(d.Calls, CallResumeCollection)
		}
		d.Calls = append(d.Calls, CallCancelAtPeriodEnd)

	case UndoCancel:
		if !current.CancelAtPeriodEnd {
			return Decision{}, ErrNotCancelling
		}
		if !current.HasBillingRef() {
			return Decision{}, ErrNoBillingReference
		}
		d.Calls = []GatewayCall{CallResumeAutoRenew}

	default:
		return Decision{}, fmt.Errorf("%w: %T", ErrUnknownTransition, tr)
	}

	d.Next = d.Partial(len(d.Calls))
	return d, nil
}
