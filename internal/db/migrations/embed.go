// Package migrations embeds the goose SQL migration files applied by
// internal/db.RunMigrations and internal/testutil.SetupTestDB.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
