package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Subscription is the local mirror of an owner's subscription at the billing provider.
// Each owner has at most one subscription.
type Subscription struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID // unique across subscriptions
	PlanID             string
	Status             Status
	BillingRef         *BillingRef // nil only while trialing and not yet upgraded
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialEndsAt        *time.Time
	PausedAt           *time.Time
	PauseEndsAt        *time.Time
	CancelAtPeriodEnd  bool
	Version            int64 // bumped by every store update
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsTrialing returns true if the subscription is in trial status.
func (s *Subscription) IsTrialing() bool {
	return s.Status == StatusTrialing
}

// IsPaused reports whether a collection pause window is set.
func (s *Subscription) IsPaused() bool {
	return s.PausedAt != nil
}

// HasBillingRef reports whether the subscription is linked to the billing provider.
func (s *Subscription) HasBillingRef() bool {
	return s.BillingRef != nil && s.BillingRef.SubscriptionID != ""
}

// PauseExpired reports whether the pause window has ended at now.
func (s *Subscription) PauseExpired(now time.Time) bool {
	return s.PauseEndsAt != nil && !s.PauseEndsAt.After(now)
}

// TrialDaysRemainingAt returns the number of days remaining in the trial at a given time.
// Returns 0 if not in trial or trial has expired.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if !s.IsTrialing() || s.TrialEndsAt == nil {
		return 0
	}

	remaining := s.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	// Round up partial days to be user-friendly
	days := remaining.Hours() / 24
	return int(days + 0.5)
}

// Validate checks the invariants every persisted subscription must satisfy.
func (s *Subscription) Validate() error {
	if (s.PausedAt == nil) != (s.PauseEndsAt == nil) {
		return fmt.Errorf("%w: pause window must have both bounds or none", ErrInvariantViolation)
	}
	if s.CancelAtPeriodEnd && s.PausedAt != nil {
		return fmt.Errorf("%w: cancelling subscription cannot be paused", ErrInvariantViolation)
	}
	if !s.HasBillingRef() && s.Status != StatusTrialing {
		return fmt.Errorf("%w: status %s requires a billing reference", ErrInvariantViolation, s.Status)
	}
	if s.Status == StatusPaused {
		if s.PausedAt == nil || s.PauseEndsAt == nil {
			return fmt.Errorf("%w: paused status requires a pause window", ErrInvariantViolation)
		}
		if !s.PauseEndsAt.After(*s.PausedAt) {
			return fmt.Errorf("%w: pause must end after it starts", ErrInvariantViolation)
		}
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariantViolation, s.Status)
	}
	return nil
}

// Clone returns a deep copy of s.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	if s.BillingRef != nil {
		ref := *s.BillingRef
		c.BillingRef = &ref
	}
	c.TrialEndsAt = cloneTime(s.TrialEndsAt)
	c.PausedAt = cloneTime(s.PausedAt)
	c.PauseEndsAt = cloneTime(s.PauseEndsAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
