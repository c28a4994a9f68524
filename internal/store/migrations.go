package store

import (
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// versionTable is the goose bookkeeping table of the delivery ledger.
const versionTable = "streamhose_db_version"

// InitMigrations points goose at the embedded ledger migrations.
func InitMigrations() {
	goose.SetBaseFS(migrationFS)
	goose.SetTableName(versionTable)
}
