package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingkit/pkg/audit"
	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/environment"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/redis"
	"github.com/dmitrymomot/billingkit/pkg/requestid"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/svc/billing"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"billingd"`
}

func loadDotenv(files []string) error {
	return config.LoadDotenv(files...)
}

// newLogger builds the process logger from APP_ENV and LOG_LEVEL.
func newLogger() (*slog.Logger, error) {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		return nil, err
	}
	log := logger.New(
		logger.WithEnvironment(environment.Parse(cfg.Env), cfg.ServiceName),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithOutput(os.Stderr),
		logger.WithContextExtractors(requestid.LogExtractor, subscription.ActorIDExtractor),
	)
	logger.SetAsDefault(log)
	return log, nil
}

// app holds the infrastructure shared by the commands.
type app struct {
	cfg      billing.Config
	pgCfg    pg.Config
	log      *slog.Logger
	pool     *pgxpool.Pool
	redis    *goredis.Client
	locker   *redis.Locker
	registry *prometheus.Registry
	metrics  *subscription.Metrics
	store    *billing.PGStore
	gateway  *subscription.StripeGateway
	catalog  *subscription.Catalog
}

func newApp(ctx context.Context, log *slog.Logger) (*app, error) {
	cfg, err := config.Load[billing.Config]()
	if err != nil {
		return nil, err
	}
	pgCfg, err := config.Load[pg.Config]()
	if err != nil {
		return nil, err
	}
	redisCfg, err := config.Load[redis.Config]()
	if err != nil {
		return nil, err
	}
	stripeCfg, err := config.Load[subscription.StripeConfig]()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, pgCfg: pgCfg, log: log}

	if a.pool, err = pg.Connect(ctx, pgCfg); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if a.redis, err = redis.Connect(ctx, redisCfg); err != nil {
		a.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.locker = redis.NewLocker(a.redis,
		redis.WithLockPrefix(redisCfg.LockPrefix),
		redis.WithLockLogger(log),
	)

	if a.gateway, err = subscription.NewStripeGateway(stripeCfg, subscription.WithStripeLogger(log)); err != nil {
		a.close()
		return nil, err
	}
	if a.catalog, err = billing.LoadCatalog(ctx, cfg); err != nil {
		a.close()
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = subscription.NewMetrics(a.registry)
	a.store = billing.NewPGStore(a.pool)

	log.InfoContext(ctx, "billing infrastructure ready", slog.Int("plans", a.catalog.Len()))
	return a, nil
}

// migrate applies, or with down set rolls back one step of, the embedded migrations.
func migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger, down bool) error {
	opt := pg.WithMigrationsFS(billing.Migrations, billing.MigrationsDir)
	if down {
		return pg.Rollback(ctx, pool, cfg, log, opt)
	}
	return pg.Migrate(ctx, pool, cfg, log, opt)
}

func (a *app) notifier() (subscription.Notifier, error) {
	cfg, err := config.Load[email.Config]()
	if err != nil {
		return nil, err
	}

	var sender email.EmailSender
	if cfg.Enabled() {
		if sender, err = email.NewPostmarkClient(cfg); err != nil {
			return nil, err
		}
	} else {
		a.log.Warn("postmark is not configured, emails are written to disk", slog.String("dir", cfg.DevOutputDir))
		sender = email.NewDevSender(cfg.DevOutputDir, a.log)
	}
	return billing.NewEmailNotifier(sender, a.store, cfg.SupportEmail, a.log), nil
}

func (a *app) reconciler() (*subscription.Reconciler, error) {
	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}
	opts := append(a.cfg.ReconcilerOptions(),
		subscription.WithLogger(a.log),
		subscription.WithMetrics(a.metrics),
		subscription.WithLocker(a.locker),
		subscription.WithNotifier(notifier),
	)
	return subscription.NewReconciler(a.store, a.gateway, opts...), nil
}

func (a *app) auditLogger() *audit.Logger {
	return audit.NewLogger(billing.NewPGAuditStorage(a.pool),
		audit.WithActorExtractor(subscription.ActorIDFromContext),
		audit.WithRequestIDExtractor(func(ctx context.Context) (string, bool) {
			id := requestid.FromContext(ctx)
			return id, id != ""
		}),
	)
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("failed to close redis client", logger.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
