// Package pg bootstraps PostgreSQL access on top of pgx/v5.
//
// Connect opens a *pgxpool.Pool with retries, Migrate and Rollback run goose
// migrations from a directory or an embedded filesystem, WithTx wraps a unit
// of work in a transaction, and Healthcheck returns a readiness probe.
// Config is populated from environment variables:
//
//	cfg, err := config.Load[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	defer pool.Close()
//
//	err = pg.Migrate(ctx, pool, cfg, log, pg.WithMigrationsFS(migrations, "migrations"))
//
// IsNotFoundError, IsDuplicateKeyError and IsSerializationError classify
// errors returned by pgx.
package pg
