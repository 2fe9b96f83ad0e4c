package migrations

import "embed"

// FS contains embedded SQLite migrations for delivery storage.
//
//go:embed *.sql
var FS embed.FS
