// Package migrations embeds the goose SQL migrations of every storage backend.
package migrations

import "embed"

// ClickHouse holds the migrations under clickhouse/
//
//go:embed clickhouse/*.sql
var ClickHouse embed.FS

// SQLite holds the migrations under sqlite/
//
//go:embed sqlite/*.sql
var SQLite embed.FS
