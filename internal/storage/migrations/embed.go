// Package migrations embeds the idempotent SQL bootstrap scripts, one
// directory per backend: the postgres scripts are applied by the postgres
// CatalogStore.Bootstrap, the ClickHouse ones by RunClickhouseMigrations.
package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
