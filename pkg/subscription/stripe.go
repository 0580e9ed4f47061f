package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/invoice"
	stripesub "github.com/stripe/stripe-go/v76/subscription"
)

// StripeConfig holds configuration for the Stripe gateway.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	APIURL        string `env:"STRIPE_API_URL"`                          // stripe-mock or test server
	PauseBehavior string `env:"STRIPE_PAUSE_BEHAVIOR" envDefault:"void"` // keep_as_draft, mark_uncollectible or void
}

// StripeOption configures NewStripeGateway.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithStripeHTTPClient sets the HTTP client used for API calls.
func WithStripeHTTPClient(c *http.Client) StripeOption {
	return func(o *stripeOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithStripeLogger routes SDK logs to l.
func WithStripeLogger(l *slog.Logger) StripeOption {
	return func(o *stripeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// StripeGateway implements BillingGateway on top of the Stripe API.
// Collection pauses map to pause_collection, cancellation to cancel_at_period_end.
type StripeGateway struct {
	subs          stripesub.Client
	invoices      invoice.Client
	pauseBehavior string
}

var _ BillingGateway = (*StripeGateway)(nil)

// NewStripeGateway creates a gateway with SDK-level retries disabled:
// retrying is left to the caller or the next scheduled run.
func NewStripeGateway(cfg StripeConfig, opts ...StripeOption) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}

	o := stripeOptions{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        o.httpClient,
		LeveledLogger:     stripeLogger{l: o.logger},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(strings.TrimSuffix(cfg.APIURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	behavior := cfg.PauseBehavior
	if behavior == "" {
		behavior = string(stripe.SubscriptionPauseCollectionBehaviorVoid)
	}

	return &StripeGateway{
		subs:          stripesub.Client{B: backend, Key: cfg.SecretKey},
		invoices:      invoice.Client{B: backend, Key: cfg.SecretKey},
		pauseBehavior: behavior,
	}, nil
}

func (g *StripeGateway) CancelAtPeriodEnd(ctx context.Context, ref BillingRef) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	return g.update(ctx, ref, params)
}

func (g *StripeGateway) ResumeAutoRenew(ctx context.Context, ref BillingRef) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(false)}
	return g.update(ctx, ref, params)
}

func (g *StripeGateway) PauseCollection(ctx context.Context, ref BillingRef, resumesAt time.Time) error {
	params := &stripe.SubscriptionParams{
		PauseCollection: &stripe.SubscriptionPauseCollectionParams{
			Behavior:  stripe.String(g.pauseBehavior),
			ResumesAt: stripe.Int64(resumesAt.Unix()),
		},
	}
	return g.update(ctx, ref, params)
}

func (g *StripeGateway) ResumeCollection(ctx context.Context, ref BillingRef) error {
	params := &stripe.SubscriptionParams{}
	// An empty value unsets pause_collection.
	params.AddExtra("pause_collection", "")
	return g.update(ctx, ref, params)
}

func (g *StripeGateway) FetchSubscription(ctx context.Context, ref BillingRef) (*ProviderSnapshot, error) {
	if ref.SubscriptionID == "" {
		return nil, ErrNoBillingReference
	}

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	s, err := g.subs.Get(ref.SubscriptionID, params)
	if err != nil {
		return nil, classifyStripeError("fetch subscription", err)
	}

	snap := &ProviderSnapshot{
		Status:             mapStripeStatus(s.Status),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		TrialStart:         unixTimePtr(s.TrialStart),
		TrialEnd:           unixTimePtr(s.TrialEnd),
	}
	if s.PauseCollection != nil {
		snap.CollectionPaused = true
		snap.PauseResumesAt = unixTimePtr(s.PauseCollection.ResumesAt)
	}
	return snap, nil
}

func (g *StripeGateway) FetchUpcomingInvoice(ctx context.Context, customerID string) (*UpcomingInvoice, error) {
	if customerID == "" {
		return nil, ErrMissingProviderCustomerID
	}

	params := &stripe.InvoiceUpcomingParams{Customer: stripe.String(customerID)}
	params.Context = ctx

	inv, err := g.invoices.Upcoming(params)
	if err != nil {
		return nil, classifyStripeError("fetch upcoming invoice", err)
	}

	return &UpcomingInvoice{
		AmountDue: Money{
			Amount:   inv.AmountDue,
			Currency: strings.ToUpper(string(inv.Currency)),
		},
		PeriodEnd: unixTime(inv.PeriodEnd),
	}, nil
}

func (g *StripeGateway) update(ctx context.Context, ref BillingRef, params *stripe.SubscriptionParams) error {
	if ref.SubscriptionID == "" {
		return ErrNoBillingReference
	}
	params.Context = ctx

	if _, err := g.subs.Update(ref.SubscriptionID, params); err != nil {
		return classifyStripeError("update subscription", err)
	}
	return nil
}

func classifyStripeError(op string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s: %s", ErrProviderNotFound, op, serr.Msg)
		}
		return fmt.Errorf("%w: %s: %s (%s)", ErrGatewayUnavailable, op, serr.Msg, serr.Code)
	}
	return fmt.Errorf("%w: %s: %w", ErrGatewayUnavailable, op, err)
}

// mapStripeStatus folds Stripe's statuses into the local set. Stripe's own
// "paused" means a trial ended without a payment method, which is unpaid here.
func mapStripeStatus(s stripe.SubscriptionStatus) Status {
	switch s {
	case stripe.SubscriptionStatusActive:
		return StatusActive
	case stripe.SubscriptionStatusTrialing:
		return StatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusIncomplete:
		return StatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return StatusCanceled
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return StatusUnpaid
	}
	return Status(s)
}

func unixTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func unixTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := unixTime(ts)
	return &t
}

// stripeLogger adapts slog to stripe.LeveledLoggerInterface.
type stripeLogger struct {
	l *slog.Logger
}

func (s stripeLogger) Debugf(format string, v ...any) { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s stripeLogger) Infof(format string, v ...any)  { s.l.Info(fmt.Sprintf(format, v...)) }
func (s stripeLogger) Warnf(format string, v ...any)  { s.l.Warn(fmt.Sprintf(format, v...)) }
func (s stripeLogger) Errorf(format string, v ...any) { s.l.Error(fmt.Sprintf(format, v...)) }
