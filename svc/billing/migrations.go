package billing

import "embed"

// Migrations holds the goose migrations of the subscriptions table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"
