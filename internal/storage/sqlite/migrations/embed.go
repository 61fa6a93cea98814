package migrations

import "embed"

// FS contains embedded SQLite migrations for reading engine storage.
//
//go:embed *.sql
var FS embed.FS
