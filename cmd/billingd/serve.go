package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/redis"
	"github.com/dmitrymomot/billingkit/pkg/requestid"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/svc/billing"
)

var (
	migrateOnStart bool
	withScheduler  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily auto-resume job",
	Long: `Start the billing API.

The server will:
  - Apply pending database migrations (disable with --migrate=false)
  - Serve the subscription API under /v1
  - Expose /healthz, /readyz and Prometheus metrics on /metrics
  - Lift expired collection pauses daily at RECONCILE_SCHEDULE_HOUR UTC`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply pending migrations before serving")
	serveCmd.Flags().BoolVar(&withScheduler, "scheduler", true, "run the auto-resume job in process")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger()
	if err != nil {
		return err
	}
	httpCfg, err := config.Load[httpserver.Config]()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, log)
	if err != nil {
		return err
	}
	defer a.close()

	if migrateOnStart {
		if err := migrate(ctx, a.pool, a.pgCfg, log, false); err != nil {
			return err
		}
	}

	roles := subscription.SelfOwnership
	svcOpts := append(a.cfg.ServiceOptions(),
		subscription.WithLogger(log),
		subscription.WithMetrics(a.metrics),
		subscription.WithLocker(a.locker),
	)
	svc := billing.NewAuditedService(
		subscription.NewService(a.store, a.gateway, roles, svcOpts...),
		roles, a.auditLogger(), log,
	)

	reconciler, err := a.reconciler()
	if err != nil {
		return err
	}
	provisioner := subscription.NewTrialProvisioner(a.catalog, subscription.WithLogger(log))

	api := billing.NewHandler(svc,
		billing.WithHistory(svc),
		billing.WithAutoResumer(reconciler),
		billing.WithOnboarder(billing.NewPGOnboarding(a.pool, provisioner, a.cfg.DefaultPlan)),
		billing.WithOpsToken(a.cfg.OpsToken),
		billing.WithHandlerLogger(log),
	)
	if a.cfg.OpsToken == "" {
		log.WarnContext(ctx, "OPS_TOKEN is not set, /v1/ops routes are disabled")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, pg.Healthcheck(a.pool), redis.Healthcheck(a.redis)))
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	r.Mount("/v1", api.Routes())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.New(httpCfg, log).Run(gctx, r)
	})

	if withScheduler {
		sched, err := a.autoResumeScheduler(log, reconciler, nil)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "in-process scheduler enabled", slog.Any("jobs", sched.Jobs()))

		g.Go(func() error {
			if err := sched.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
