package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/scheduler"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Config holds the lifecycle service settings.
type Config struct {
	OpsToken       string        `env:"OPS_TOKEN"` // empty disables /ops routes
	PlansFile      string        `env:"PLANS_FILE"`
	DefaultPlan    string        `env:"DEFAULT_TRIAL_PLAN" envDefault:"starter"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	LockTTL        time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	RefreshOnRead  bool          `env:"REFRESH_ON_READ" envDefault:"true"`
	Reconciler     ReconcilerConfig
}

// ReconcilerConfig holds the auto-resume job settings.
type ReconcilerConfig struct {
	Concurrency   int     `env:"RECONCILE_CONCURRENCY" envDefault:"4"`
	BatchSize     int     `env:"RECONCILE_BATCH_SIZE" envDefault:"100"`
	RatePerSecond float64 `env:"RECONCILE_RATE_PER_SECOND" envDefault:"5"`
	ScheduleHour  int     `env:"RECONCILE_SCHEDULE_HOUR" envDefault:"3"`
	Cron          string  `env:"RECONCILE_CRON"` // overrides ScheduleHour, e.g. "0 */6 * * *"
}

// Schedule returns when the in-process auto-resume job runs.
func (c ReconcilerConfig) Schedule() (scheduler.Schedule, error) {
	if c.Cron != "" {
		return scheduler.Cron(c.Cron)
	}
	return scheduler.DailyAt(c.ScheduleHour, 0), nil
}

// ServiceOptions translates cfg into lifecycle service options.
func (c Config) ServiceOptions() []subscription.Option {
	return []subscription.Option{
		subscription.WithCallTimeout(c.GatewayTimeout),
		subscription.WithLockTTL(c.LockTTL),
		subscription.WithRefreshOnRead(c.RefreshOnRead),
	}
}

// ReconcilerOptions translates cfg into reconciler options.
func (c Config) ReconcilerOptions() []subscription.Option {
	return []subscription.Option{
		subscription.WithCallTimeout(c.GatewayTimeout),
		subscription.WithLockTTL(c.LockTTL),
		subscription.WithConcurrency(c.Reconciler.Concurrency),
		subscription.WithBatchSize(c.Reconciler.BatchSize),
		subscription.WithRateLimit(c.Reconciler.RatePerSecond, c.Reconciler.Concurrency),
	}
}

// DefaultPlans is the catalog used when no plans file is configured.
func DefaultPlans() []subscription.Plan {
	return []subscription.Plan{
		{
			ID:        "starter",
			Name:      "Starter",
			Public:    true,
			TrialDays: subscription.DefaultTrialDays,
			Price:     subscription.Money{Amount: 900, Currency: "USD"},
			Interval:  subscription.BillingIntervalMonthly,
		},
		{
			ID:        "pro",
			Name:      "Pro",
			Public:    true,
			TrialDays: subscription.DefaultTrialDays,
			Price:     subscription.Money{Amount: 2900, Currency: "USD"},
			Interval:  subscription.BillingIntervalMonthly,
		},
	}
}

// LoadCatalog reads PlansFile when set and falls back to DefaultPlans.
func LoadCatalog(ctx context.Context, cfg Config) (*subscription.Catalog, error) {
	if cfg.PlansFile != "" {
		return subscription.NewCatalog(ctx, subscription.NewYAMLFileSource(cfg.PlansFile))
	}
	return subscription.NewCatalog(ctx, subscription.NewInMemSource(DefaultPlans()...))
}
