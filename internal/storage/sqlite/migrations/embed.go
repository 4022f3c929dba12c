// Package migrations embeds the engine's SQLite schema migrations.
package migrations

import "embed"

// FS holds the SQL migration files applied at store open.
//
//go:embed *.sql
var FS embed.FS
