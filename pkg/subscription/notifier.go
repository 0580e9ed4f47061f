package subscription

import "context"

// Notifier informs owners about changes they did not trigger themselves.
// Delivery failures never fail the operation that caused them.
type Notifier interface {
	// SubscriptionResumed is sent after an expired pause was lifted.
	// invoice is nil when the upcoming invoice could not be fetched.
	SubscriptionResumed(ctx context.Context, sub *Subscription, invoice *UpcomingInvoice) error
}

type noopNotifier struct{}

func (noopNotifier) SubscriptionResumed(context.Context, *Subscription, *UpcomingInvoice) error {
	return nil
}
