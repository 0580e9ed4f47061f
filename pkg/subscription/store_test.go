package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

func TestMemoryStore_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := subscription.NewMemoryStore()
	owner := uuid.New()

	require.NoError(t, store.Create(ctx, trialSub(owner)))
	err := store.Create(ctx, trialSub(owner))
	assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)

	got, err := store.GetByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	_, err = store.GetByOwner(ctx, uuid.New())
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
}

func TestMemoryStore_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sub := activeSub(uuid.New())
	store := subscription.NewMemoryStore(sub)

	t.Run("applies patch and bumps version", func(t *testing.T) {
		updated, err := store.Update(ctx, sub.ID, subscription.Patch{
			CancelAtPeriodEnd: subscription.Set(true),
		}, 1)
		require.NoError(t, err)
		assert.True(t, updated.CancelAtPeriodEnd)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, sub.PlanID, updated.PlanID)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		_, err := store.Update(ctx, sub.ID, subscription.Patch{
			CancelAtPeriodEnd: subscription.Set(false),
		}, 1)
		assert.ErrorIs(t, err, subscription.ErrVersionConflict)

		got, err := store.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.True(t, got.CancelAtPeriodEnd)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Update(ctx, uuid.New(), subscription.Patch{}, 1)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sub := pausedSub(uuid.New(), t0, 1)
	store := subscription.NewMemoryStore(sub)

	got, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	got.PausedAt = nil

	again, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.NotNil(t, again.PausedAt)
}

func TestMemoryStore_ListExpiredPauses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var expired []*subscription.Subscription
	for range 5 {
		expired = append(expired, pausedSub(uuid.New(), t0, 1))
	}
	notYet := pausedSub(uuid.New(), t0, 3)
	active := activeSub(uuid.New())

	store := subscription.NewMemoryStore(append(expired, notYet, active)...)
	now := t0.AddDate(0, 2, 0)

	var (
		seen    []uuid.UUID
		afterID uuid.UUID
	)
	for {
		page, err := store.ListExpiredPauses(ctx, now, afterID, 2)
		require.NoError(t, err)
		for _, s := range page {
			seen = append(seen, s.ID)
		}
		if len(page) < 2 {
			break
		}
		afterID = page[len(page)-1].ID
	}

	require.Len(t, seen, 5)
	for _, s := range expired {
		assert.Contains(t, seen, s.ID)
	}
	assert.NotContains(t, seen, notYet.ID)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	t.Run("identical rows give empty patch", func(t *testing.T) {
		t.Parallel()
		s := pausedSub(uuid.New(), t0, 1)
		assert.True(t, subscription.Diff(s, s.Clone()).IsEmpty())
	})

	t.Run("pause window is written as a pair", func(t *testing.T) {
		t.Parallel()
		before := pausedSub(uuid.New(), t0, 1)
		after := before.Clone()
		after.PauseEndsAt = ptr(t0.AddDate(0, 2, 0))

		p := subscription.Diff(before, after)
		assert.True(t, p.PausedAt.Set)
		assert.True(t, p.PauseEndsAt.Set)
		assert.False(t, p.Status.Set)
	})

	t.Run("apply reproduces the target", func(t *testing.T) {
		t.Parallel()
		before := pausedSub(uuid.New(), t0, 1)
		after := before.Clone()
		after.PausedAt = nil
		after.PauseEndsAt = nil
		after.Status = subscription.StatusActive
		after.CancelAtPeriodEnd = true

		got := before.Clone()
		subscription.Diff(before, after).Apply(got)
		assert.Equal(t, after, got)
	})
}
