package migration

import "embed"

// The .up.sql files are applied in lexical order; names are the ledger
// of applied migrations, so never rename a shipped file.
//
//go:embed migrations/*.up.sql
var migrationFS embed.FS

const migrationsDir = "migrations"
