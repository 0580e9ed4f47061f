package subscription_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

var t0 = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CancelAtPeriodEnd(ctx context.Context, ref subscription.BillingRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *mockGateway) ResumeAutoRenew(ctx context.Context, ref subscription.BillingRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *mockGateway) PauseCollection(ctx context.Context, ref subscription.BillingRef, resumesAt time.Time) error {
	return m.Called(ctx, ref, resumesAt).Error(0)
}

func (m *mockGateway) ResumeCollection(ctx context.Context, ref subscription.BillingRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *mockGateway) FetchSubscription(ctx context.Context, ref subscription.BillingRef) (*subscription.ProviderSnapshot, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.ProviderSnapshot), args.Error(1)
}

func (m *mockGateway) FetchUpcomingInvoice(ctx context.Context, customerID string) (*subscription.UpcomingInvoice, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.UpcomingInvoice), args.Error(1)
}

func (m *mockGateway) methods() []string {
	names := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		names = append(names, c.Method)
	}
	return names
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SubscriptionResumed(ctx context.Context, sub *subscription.Subscription, invoice *subscription.UpcomingInvoice) error {
	return m.Called(ctx, sub, invoice).Error(0)
}

// failingUpdateStore lets Update fail while reads keep working.
type failingUpdateStore struct {
	*subscription.MemoryStore
	err      error
	attempts atomic.Int32
}

func (s *failingUpdateStore) Update(ctx context.Context, id uuid.UUID, patch subscription.Patch, expectedVersion int64) (*subscription.Subscription, error) {
	s.attempts.Add(1)
	return nil, s.err
}

var errProviderDown = errors.New("provider timeout")

func ptr[T any](v T) *T {
	return &v
}

func ref(n string) *subscription.BillingRef {
	return &subscription.BillingRef{CustomerID: "cus_" + n, SubscriptionID: "sub_" + n}
}

func activeSub(owner uuid.UUID) *subscription.Subscription {
	return &subscription.Subscription{
		ID:                 uuid.New(),
		OwnerID:            owner,
		PlanID:             "price_starter",
		Status:             subscription.StatusActive,
		BillingRef:         ref(owner.String()[:8]),
		CurrentPeriodStart: t0.AddDate(0, 0, -10),
		CurrentPeriodEnd:   t0.AddDate(0, 0, 20),
		Version:            1,
		CreatedAt:          t0.AddDate(0, -2, 0),
		UpdatedAt:          t0.AddDate(0, 0, -10),
	}
}

func pausedSub(owner uuid.UUID, pausedAt time.Time, months int) *subscription.Subscription {
	s := activeSub(owner)
	s.Status = subscription.StatusPaused
	s.PausedAt = ptr(pausedAt)
	s.PauseEndsAt = ptr(pausedAt.AddDate(0, months, 0))
	return s
}

func trialSub(owner uuid.UUID) *subscription.Subscription {
	return &subscription.Subscription{
		ID:                 uuid.New(),
		OwnerID:            owner,
		PlanID:             "price_starter",
		Status:             subscription.StatusTrialing,
		CurrentPeriodStart: t0,
		CurrentPeriodEnd:   t0.AddDate(0, 0, 14),
		TrialEndsAt:        ptr(t0.AddDate(0, 0, 14)),
		Version:            1,
	}
}
