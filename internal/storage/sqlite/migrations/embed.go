package migrations

import "embed"

// FS contains embedded SQLite migrations for expedition storage.
//
//go:embed *.sql
var FS embed.FS
