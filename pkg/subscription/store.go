package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists subscriptions. Update is the concurrency-control primitive:
// it applies a patch only if the stored version still equals expectedVersion.
type Store interface {
	// GetByOwner returns ErrSubscriptionNotFound if the owner has no subscription.
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Subscription, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// Create returns ErrSubscriptionAlreadyExists if the owner already has a subscription.
	Create(ctx context.Context, sub *Subscription) error

	// Update returns ErrVersionConflict when the row changed since it was read,
	// and the updated row with its version incremented otherwise.
	Update(ctx context.Context, id uuid.UUID, patch Patch, expectedVersion int64) (*Subscription, error)

	// ListExpiredPauses returns paused subscriptions with pauseEndsAt <= now,
	// ordered by ID and starting strictly after afterID.
	ListExpiredPauses(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]*Subscription, error)
}

// Field is an optional patch value. Zero value means "leave unchanged".
type Field[T any] struct {
	Value T
	Set   bool
}

// Set returns a field that overwrites the stored value with v.
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Patch lists the mutable subscription fields to overwrite.
type Patch struct {
	Status             Field[Status]
	BillingRef         Field[*BillingRef]
	CurrentPeriodStart Field[time.Time]
	CurrentPeriodEnd   Field[time.Time]
	TrialEndsAt        Field[*time.Time]
	PausedAt           Field[*time.Time]
	PauseEndsAt        Field[*time.Time]
	CancelAtPeriodEnd  Field[bool]
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return !p.Status.Set && !p.BillingRef.Set && !p.CurrentPeriodStart.Set &&
		!p.CurrentPeriodEnd.Set && !p.TrialEndsAt.Set && !p.PausedAt.Set &&
		!p.PauseEndsAt.Set && !p.CancelAtPeriodEnd.Set
}

// Apply writes the set fields onto s.
func (p Patch) Apply(s *Subscription) {
	if p.Status.Set {
		s.Status = p.Status.Value
	}
	if p.BillingRef.Set {
		s.BillingRef = p.BillingRef.Value
	}
	if p.CurrentPeriodStart.Set {
		s.CurrentPeriodStart = p.CurrentPeriodStart.Value
	}
	if p.CurrentPeriodEnd.Set {
		s.CurrentPeriodEnd = p.CurrentPeriodEnd.Value
	}
	if p.TrialEndsAt.Set {
		s.TrialEndsAt = cloneTime(p.TrialEndsAt.Value)
	}
	if p.PausedAt.Set {
		s.PausedAt = cloneTime(p.PausedAt.Value)
	}
	if p.PauseEndsAt.Set {
		s.PauseEndsAt = cloneTime(p.PauseEndsAt.Value)
	}
	if p.CancelAtPeriodEnd.Set {
		s.CancelAtPeriodEnd = p.CancelAtPeriodEnd.Value
	}
}

// Diff returns the patch that turns before into after.
func Diff(before, after *Subscription) Patch {
	var p Patch
	if before.Status != after.Status {
		p.Status = Set(after.Status)
	}
	if !equalRef(before.BillingRef, after.BillingRef) {
		p.BillingRef = Set(after.BillingRef)
	}
	if !before.CurrentPeriodStart.Equal(after.CurrentPeriodStart) {
		p.CurrentPeriodStart = Set(after.CurrentPeriodStart)
	}
	if !before.CurrentPeriodEnd.Equal(after.CurrentPeriodEnd) {
		p.CurrentPeriodEnd = Set(after.CurrentPeriodEnd)
	}
	if !equalTime(before.TrialEndsAt, after.TrialEndsAt) {
		p.TrialEndsAt = Set(after.TrialEndsAt)
	}
	// The pause window is written as a pair so a store never holds half of it.
	if !equalTime(before.PausedAt, after.PausedAt) || !equalTime(before.PauseEndsAt, after.PauseEndsAt) {
		p.PausedAt = Set(after.PausedAt)
		p.PauseEndsAt = Set(after.PauseEndsAt)
	}
	if before.CancelAtPeriodEnd != after.CancelAtPeriodEnd {
		p.CancelAtPeriodEnd = Set(after.CancelAtPeriodEnd)
	}
	return p
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalRef(a, b *BillingRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
