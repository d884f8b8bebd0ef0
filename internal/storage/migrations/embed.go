package migrations

import "embed"

// Postgres contains the embedded PostgreSQL migrations.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite contains the embedded SQLite migrations.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
