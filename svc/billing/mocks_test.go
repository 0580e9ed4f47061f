package billing_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

var t0 = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

type mockService struct {
	mock.Mock
}

func (m *mockService) sub(args mock.Arguments) (*subscription.Subscription, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockService) Get(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	return m.sub(m.Called(ctx, actorID, ownerID))
}

func (m *mockService) Refresh(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	return m.sub(m.Called(ctx, actorID, ownerID))
}

func (m *mockService) Pause(ctx context.Context, actorID, ownerID uuid.UUID, months int) (*subscription.Subscription, error) {
	return m.sub(m.Called(ctx, actorID, ownerID, months))
}

func (m *mockService) Resume(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	return m.sub(m.Called(ctx, actorID, ownerID))
}

func (m *mockService) Cancel(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	return m.sub(m.Called(ctx, actorID, ownerID))
}

func (m *mockService) UndoCancel(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	return m.sub(m.Called(ctx, actorID, ownerID))
}

func (m *mockService) UpcomingInvoice(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.UpcomingInvoice, error) {
	args := m.Called(ctx, actorID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.UpcomingInvoice), args.Error(1)
}

type mockResumer struct {
	mock.Mock
}

func (m *mockResumer) RunAutoResume(ctx context.Context, now time.Time) (subscription.Summary, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(subscription.Summary), args.Error(1)
}

type mockOnboarder struct {
	mock.Mock
}

func (m *mockOnboarder) Onboard(ctx context.Context, ownerID uuid.UUID, planName, billingEmail string) (*subscription.Subscription, error) {
	args := m.Called(ctx, ownerID, planName, billingEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	return m.Called(ctx, params).Error(0)
}

func activeSubscription(ownerID uuid.UUID) *subscription.Subscription {
	return &subscription.Subscription{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		PlanID:             "starter",
		Status:             subscription.StatusActive,
		BillingRef:         &subscription.BillingRef{CustomerID: "cus_1", SubscriptionID: "sub_1"},
		CurrentPeriodStart: t0.AddDate(0, 0, -5),
		CurrentPeriodEnd:   t0.AddDate(0, 0, 25),
		Version:            3,
	}
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
