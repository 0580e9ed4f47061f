package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type serviceFixture struct {
	store   *subscription.MemoryStore
	gateway *mockGateway
	metrics *subscription.Metrics
	svc     subscription.Service
	owner   uuid.UUID
}

func newServiceFixture(t *testing.T, sub *subscription.Subscription, opts ...subscription.Option) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		store:   subscription.NewMemoryStore(sub),
		gateway: &mockGateway{},
		metrics: subscription.NewMetrics(prometheus.NewRegistry()),
		owner:   sub.OwnerID,
	}
	opts = append([]subscription.Option{
		subscription.WithClock(fixedClock(t0)),
		subscription.WithMetrics(f.metrics),
	}, opts...)
	f.svc = subscription.NewService(f.store, f.gateway, subscription.SelfOwnership, opts...)
	return f
}

func TestService_Pause(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pauses active subscription", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, activeSub(uuid.New()))
		f.gateway.On("PauseCollection", mock.Anything, mock.Anything, t0.AddDate(0, 2, 0)).Return(nil).Once()

		got, err := f.svc.Pause(ctx, f.owner, f.owner, 2)
		require.NoError(t, err)

		assert.Equal(t, t0, *got.PausedAt)
		assert.Equal(t, t0.AddDate(0, 2, 0), *got.PauseEndsAt)
		assert.Equal(t, subscription.StatusPaused, got.Status)
		assert.Equal(t, int64(2), got.Version)
		f.gateway.AssertNumberOfCalls(t, "PauseCollection", 1)

		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("pause", "success")))
	})

	t.Run("gateway failure leaves the row untouched", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(uuid.New())
		f := newServiceFixture(t, sub)
		before, err := f.store.GetByOwner(ctx, f.owner)
		require.NoError(t, err)

		f.gateway.On("PauseCollection", mock.Anything, mock.Anything, mock.Anything).Return(errProviderDown).Once()

		_, err = f.svc.Pause(ctx, f.owner, f.owner, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
		assert.ErrorIs(t, err, errProviderDown)
		assert.True(t, subscription.IsRetryable(err))
		assert.Equal(t, "billing provider is unavailable, try again later", subscription.PublicMessage(err))

		after, err := f.store.GetByOwner(ctx, f.owner)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("rejects trial without calling the provider", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, trialSub(uuid.New()))

		_, err := f.svc.Pause(ctx, f.owner, f.owner, 1)
		assert.ErrorIs(t, err, subscription.ErrTrialCannotPause)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("non owner is forbidden", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, activeSub(uuid.New()))

		_, err := f.svc.Pause(ctx, uuid.New(), f.owner, 1)
		assert.ErrorIs(t, err, subscription.ErrForbidden)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("role lookup failure is surfaced", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(uuid.New())
		roles := subscription.RoleCheckerFunc(func(context.Context, uuid.UUID, uuid.UUID, subscription.Role) (bool, error) {
			return false, errors.New("db down")
		})
		svc := subscription.NewService(subscription.NewMemoryStore(sub), &mockGateway{}, roles)

		_, err := svc.Pause(ctx, sub.OwnerID, sub.OwnerID, 1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, subscription.ErrForbidden)
	})

	t.Run("team member with owner role may pause", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(uuid.New())
		member := uuid.New()
		roles := subscription.NewMemoryRoles()
		roles.Grant(member, sub.OwnerID, subscription.RoleOwner)

		gw := &mockGateway{}
		gw.On("PauseCollection", mock.Anything, *sub.BillingRef, mock.Anything).Return(nil).Once()
		svc := subscription.NewService(subscription.NewMemoryStore(sub), gw, roles, subscription.WithClock(fixedClock(t0)))

		_, err := svc.Pause(ctx, member, sub.OwnerID, 3)
		require.NoError(t, err)
		gw.AssertExpectations(t)
	})

	t.Run("revoked member is forbidden", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(uuid.New())
		member := uuid.New()
		roles := subscription.NewMemoryRoles()
		roles.Grant(member, sub.OwnerID, subscription.RoleOwner)
		roles.Revoke(member, sub.OwnerID, subscription.RoleOwner)

		gw := &mockGateway{}
		svc := subscription.NewService(subscription.NewMemoryStore(sub), gw, roles)

		_, err := svc.Pause(ctx, member, sub.OwnerID, 1)
		assert.ErrorIs(t, err, subscription.ErrForbidden)
		assert.Empty(t, gw.Calls)
	})

	t.Run("missing subscription", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, activeSub(uuid.New()))
		other := uuid.New()

		_, err := f.svc.Pause(ctx, other, other, 1)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}

func TestService_Resume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("resumes paused subscription", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, pausedSub(uuid.New(), t0.AddDate(0, -1, 0), 2))
		f.gateway.On("ResumeCollection", mock.Anything, mock.Anything).Return(nil).Once()

		got, err := f.svc.Resume(ctx, f.owner, f.owner)
		require.NoError(t, err)
		assert.Nil(t, got.PausedAt)
		assert.Nil(t, got.PauseEndsAt)
		assert.Equal(t, subscription.StatusActive, got.Status)
	})

	t.Run("not paused is rejected without gateway call", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, activeSub(uuid.New()))

		_, err := f.svc.Resume(ctx, f.owner, f.owner)
		assert.ErrorIs(t, err, subscription.ErrNotPaused)
		assert.Equal(t, "subscription is not paused", subscription.PublicMessage(err))
		assert.Empty(t, f.gateway.Calls)
	})
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("paused subscription resumes collection before cancelling", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, pausedSub(uuid.New(), t0, 2))
		f.gateway.On("ResumeCollection", mock.Anything, mock.Anything).Return(nil).Once()
		f.gateway.On("CancelAtPeriodEnd", mock.Anything, mock.Anything).Return(nil).Once()

		got, err := f.svc.Cancel(ctx, f.owner, f.owner)
		require.NoError(t, err)

		assert.Equal(t, []string{"ResumeCollection", "CancelAtPeriodEnd"}, f.gateway.methods())
		assert.Nil(t, got.PausedAt)
		assert.Nil(t, got.PauseEndsAt)
		assert.True(t, got.CancelAtPeriodEnd)
		assert.Equal(t, int64(2), got.Version, "a single store update")
	})

	t.Run("active subscription", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, activeSub(uuid.New()))
		f.gateway.On("CancelAtPeriodEnd", mock.Anything, mock.Anything).Return(nil).Once()

		got, err := f.svc.Cancel(ctx, f.owner, f.owner)
		require.NoError(t, err)
		assert.True(t, got.CancelAtPeriodEnd)
		assert.Nil(t, got.PausedAt)
	})

	t.Run("second call failing records the lifted pause", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, pausedSub(uuid.New(), t0, 2))
		f.gateway.On("ResumeCollection", mock.Anything, mock.Anything).Return(nil).Once()
		f.gateway.On("CancelAtPeriodEnd", mock.Anything, mock.Anything).Return(errProviderDown).Once()

		_, err := f.svc.Cancel(ctx, f.owner, f.owner)
		assert.ErrorIs(t, err, subscription.ErrGatewayUnavailable)

		got, err := f.store.GetByOwner(ctx, f.owner)
		require.NoError(t, err)
		assert.Nil(t, got.PausedAt)
		assert.False(t, got.CancelAtPeriodEnd)
		assert.Equal(t, subscription.StatusActive, got.Status)
		assert.NoError(t, got.Validate())
	})

	t.Run("already cancelling", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(uuid.New())
		sub.CancelAtPeriodEnd = true
		f := newServiceFixture(t, sub)

		_, err := f.svc.Cancel(ctx, f.owner, f.owner)
		assert.ErrorIs(t, err, subscription.ErrAlreadyCancelling)
		assert.Empty(t, f.gateway.Calls)
	})
}

func TestService_UndoCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sub := activeSub(uuid.New())
	sub.CancelAtPeriodEnd = true
	f := newServiceFixture(t, sub)
	f.gateway.On("ResumeAutoRenew", mock.Anything, *sub.BillingRef).Return(nil).Once()

	got, err := f.svc.UndoCancel(ctx, f.owner, f.owner)
	require.NoError(t, err)
	assert.False(t, got.CancelAtPeriodEnd)
	assert.Nil(t, got.PausedAt)

	_, err = f.svc.UndoCancel(ctx, f.owner, f.owner)
	assert.ErrorIs(t, err, subscription.ErrNotCancelling)
	f.gateway.AssertExpectations(t)
}

func TestService_StoreFailureAfterGateway(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sub := activeSub(uuid.New())
	store := &failingUpdateStore{MemoryStore: subscription.NewMemoryStore(sub), err: errors.New("connection reset")}
	gw := &mockGateway{}
	gw.On("PauseCollection", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	svc := subscription.NewService(store, gw, subscription.SelfOwnership, subscription.WithClock(fixedClock(t0)))

	_, err := svc.Pause(ctx, sub.OwnerID, sub.OwnerID, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, subscription.ErrDiverged)
	assert.Equal(t, int32(1), store.attempts.Load())
}

func TestService_ConcurrentTransitionsKeepInvariants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for range 20 {
		f := newServiceFixture(t, activeSub(uuid.New()))
		f.gateway.On("PauseCollection", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
		f.gateway.On("ResumeCollection", mock.Anything, mock.Anything).Return(nil).Maybe()
		f.gateway.On("CancelAtPeriodEnd", mock.Anything, mock.Anything).Return(nil).Maybe()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Pause(ctx, f.owner, f.owner, 1)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.Cancel(ctx, f.owner, f.owner)
		}()
		wg.Wait()

		got, err := f.store.GetByOwner(ctx, f.owner)
		require.NoError(t, err)
		require.NoError(t, got.Validate())
		assert.True(t, got.CancelAtPeriodEnd)
		assert.Nil(t, got.PausedAt)
	}
}

func TestService_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("adopts provider state", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, pausedSub(uuid.New(), t0.AddDate(0, -1, 0), 1))
		f.gateway.On("FetchSubscription", mock.Anything, mock.Anything).Return(&subscription.ProviderSnapshot{
			Status:             subscription.StatusActive,
			CurrentPeriodStart: t0,
			CurrentPeriodEnd:   t0.AddDate(0, 1, 0),
			CancelAtPeriodEnd:  false,
			CollectionPaused:   false,
		}, nil).Once()

		got, err := f.svc.Refresh(ctx, f.owner, f.owner)
		require.NoError(t, err)
		assert.Nil(t, got.PausedAt)
		assert.Equal(t, subscription.StatusActive, got.Status)
		assert.Equal(t, t0.AddDate(0, 1, 0), got.CurrentPeriodEnd)
	})

	t.Run("trial has nothing to refresh", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, trialSub(uuid.New()))
		_, err := f.svc.Refresh(ctx, f.owner, f.owner)
		assert.ErrorIs(t, err, subscription.ErrNoBillingReference)
	})
}

func TestService_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("falls back to local row when provider fails", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(uuid.New())
		f := newServiceFixture(t, sub, subscription.WithRefreshOnRead(true))
		f.gateway.On("FetchSubscription", mock.Anything, mock.Anything).Return(nil, errProviderDown).Once()

		got, err := f.svc.Get(ctx, f.owner, f.owner)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)
	})

	t.Run("does not write while a transition holds the owner", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, activeSub(uuid.New()), subscription.WithRefreshOnRead(true))

		entered := make(chan struct{})
		unblock := make(chan struct{})
		f.gateway.On("PauseCollection", mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				close(entered)
				<-unblock
			}).
			Return(nil).Once()
		f.gateway.On("FetchSubscription", mock.Anything, mock.Anything).Return(&subscription.ProviderSnapshot{
			Status:           subscription.StatusActive,
			CurrentPeriodEnd: t0.AddDate(0, 0, 20),
			CollectionPaused: true,
			PauseResumesAt:   ptr(t0.AddDate(0, 1, 0)),
		}, nil).Maybe()

		type result struct {
			sub *subscription.Subscription
			err error
		}
		paused := make(chan result, 1)
		go func() {
			sub, err := f.svc.Pause(ctx, f.owner, f.owner, 1)
			paused <- result{sub, err}
		}()
		<-entered

		got, err := f.svc.Get(ctx, f.owner, f.owner)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, subscription.StatusActive, got.Status)

		close(unblock)
		res := <-paused
		require.NoError(t, res.err)
		assert.Equal(t, subscription.StatusPaused, res.sub.Status)
		assert.Equal(t, int64(2), res.sub.Version)
		f.gateway.AssertNotCalled(t, "FetchSubscription", mock.Anything, mock.Anything)
	})

	t.Run("syncs the row when the owner is free", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, activeSub(uuid.New()), subscription.WithRefreshOnRead(true))
		f.gateway.On("FetchSubscription", mock.Anything, mock.Anything).Return(&subscription.ProviderSnapshot{
			Status:            subscription.StatusActive,
			CurrentPeriodEnd:  t0.AddDate(0, 0, 20),
			CancelAtPeriodEnd: true,
		}, nil).Once()

		got, err := f.svc.Get(ctx, f.owner, f.owner)
		require.NoError(t, err)
		assert.True(t, got.CancelAtPeriodEnd)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("without refresh the provider is not called", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, activeSub(uuid.New()))
		_, err := f.svc.Get(ctx, f.owner, f.owner)
		require.NoError(t, err)
		assert.Empty(t, f.gateway.Calls)
	})
}

func TestService_UpcomingInvoice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sub := activeSub(uuid.New())
	f := newServiceFixture(t, sub)
	want := &subscription.UpcomingInvoice{
		AmountDue: subscription.Money{Amount: 1900, Currency: "USD"},
		PeriodEnd: t0.AddDate(0, 1, 0),
	}
	f.gateway.On("FetchUpcomingInvoice", mock.Anything, sub.BillingRef.CustomerID).Return(want, nil).Once()

	got, err := f.svc.UpcomingInvoice(ctx, f.owner, f.owner)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	trial := newServiceFixture(t, trialSub(uuid.New()))
	_, err = trial.svc.UpcomingInvoice(ctx, trial.owner, trial.owner)
	assert.ErrorIs(t, err, subscription.ErrNoBillingReference)
}

func TestNewService_PanicsOnMissingDeps(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { subscription.NewService(nil, &mockGateway{}, subscription.SelfOwnership) })
	assert.Panics(t, func() { subscription.NewService(subscription.NewMemoryStore(), nil, subscription.SelfOwnership) })
	assert.Panics(t, func() { subscription.NewService(subscription.NewMemoryStore(), &mockGateway{}, nil) })
}
