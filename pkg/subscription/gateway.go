package subscription

import (
	"context"
	"time"
)

// BillingGateway is the narrow I/O boundary to the external billing provider.
// Implementations hold no business logic and never retry on their own:
// a failed or timed out call is reported as an error wrapping ErrGatewayUnavailable.
//
// Implementations should use the official provider SDK and keep provider
// quirks (status names, empty-parameter unsets) inside the adapter.
type BillingGateway interface {
	// CancelAtPeriodEnd asks the provider not to renew the subscription.
	CancelAtPeriodEnd(ctx context.Context, ref BillingRef) error

	// ResumeAutoRenew withdraws a pending cancel-at-period-end.
	ResumeAutoRenew(ctx context.Context, ref BillingRef) error

	// PauseCollection suspends payment collection until resumesAt.
	PauseCollection(ctx context.Context, ref BillingRef, resumesAt time.Time) error

	// ResumeCollection lifts a collection pause. Resuming a subscription
	// that is not paused must succeed.
	ResumeCollection(ctx context.Context, ref BillingRef) error

	// FetchSubscription returns the provider's authoritative view.
	FetchSubscription(ctx context.Context, ref BillingRef) (*ProviderSnapshot, error)

	// FetchUpcomingInvoice returns the next invoice preview for a customer.
	FetchUpcomingInvoice(ctx context.Context, customerID string) (*UpcomingInvoice, error)
}

// ProviderSnapshot is the provider-side state of a subscription.
type ProviderSnapshot struct {
	Status             Status
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CollectionPaused   bool
	PauseResumesAt     *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
}

// UpcomingInvoice is a preview of the next invoice.
type UpcomingInvoice struct {
	AmountDue Money
	PeriodEnd time.Time
}

// call executes a single gateway call described by a decision.
func (d Decision) call(ctx context.Context, gw BillingGateway, call GatewayCall) error {
	ref := *d.Current.BillingRef
	switch call {
	case CallPauseCollection:
		return gw.PauseCollection(ctx, ref, d.pauseEndsAt)
	case CallResumeCollection:
		return gw.ResumeCollection(ctx, ref)
	case CallCancelAtPeriodEnd:
		return gw.CancelAtPeriodEnd(ctx, ref)
	case CallResumeAutoRenew:
		return gw.ResumeAutoRenew(ctx, ref)
	}
	return ErrUnknownTransition
}
