// Package migrations embeds the goose migrations for every supported storage driver.
package migrations

import "embed"

// Postgres holds the Postgres migrations under the "postgres" directory.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the SQLite migrations under the "sqlite" directory.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
