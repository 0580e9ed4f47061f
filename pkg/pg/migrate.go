package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// MigrateOption configures Migrate and Rollback.
type MigrateOption func(*migrateOptions)

type migrateOptions struct {
	fsys fs.FS
	dir  string
}

// WithMigrationsFS reads migrations from dir inside fsys, typically an
// embed.FS compiled into the binary.
func WithMigrationsFS(fsys fs.FS, dir string) MigrateOption {
	return func(o *migrateOptions) {
		o.fsys = fsys
		o.dir = dir
	}
}

type gooseCommand func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log *slog.Logger, opts ...MigrateOption) error {
	return migrate(ctx, pool, cfg, log, goose.UpContext, opts)
}

// Rollback reverts the most recently applied migration.
func Rollback(ctx context.Context, pool *pgxpool.Pool, cfg Config, log *slog.Logger, opts ...MigrateOption) error {
	return migrate(ctx, pool, cfg, log, goose.DownContext, opts)
}

func migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log *slog.Logger, cmd gooseCommand, opts []MigrateOption) error {
	if log == nil {
		log = logger.Discard()
	}
	o := migrateOptions{dir: cfg.MigrationsPath}
	for _, opt := range opts {
		opt(&o)
	}

	if o.dir == "" {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationPathNotProvided)
	}
	if o.fsys == nil {
		if _, err := os.Stat(o.dir); err != nil {
			if os.IsNotExist(err) {
				return errors.Join(ErrMigrationsDirNotFound, err)
			}
			return errors.Join(ErrFailedToApplyMigrations, err)
		}
	}

	// goose works on database/sql, the wrapper shares the pool's connections.
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migrations db handle", slog.Any("error", err))
		}
	}()

	// goose keeps its settings in package globals.
	goose.SetBaseFS(o.fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{log: log})
	goose.SetTableName(cfg.MigrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := cmd(ctx, db, o.dir); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}
