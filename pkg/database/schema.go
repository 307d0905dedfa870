package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-records-api/internal/models"
)

type dialect struct {
	payloadType string
	bytesType   string
	timeType    string
}

func dialectFor(driver string) dialect {
	if driver == "postgres" {
		return dialect{payloadType: "JSONB", bytesType: "BYTEA", timeType: "TIMESTAMPTZ"}
	}
	return dialect{payloadType: "TEXT", bytesType: "BLOB", timeType: "TIMESTAMP"}
}

// SchemaStatements returns idempotent DDL for the given driver name.
func SchemaStatements(driver string) []string {
	d := dialectFor(driver)
	stmts := make([]string, 0, len(models.AllRecordKinds)*3+2)
	for _, kind := range models.AllRecordKinds {
		table := kind.Table()
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	payload %s NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
	reviewer_id TEXT NULL,
	review_comments TEXT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL,
	decided_at %s NULL
)`, table, d.payloadType, d.timeType, d.timeType, d.timeType),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s (owner_id, created_at)`, table, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s (status, created_at)`, table, table),
		)
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS non_cgpa_categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at %s NOT NULL
)`, d.timeType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	user_id TEXT NULL,
	action TEXT NOT NULL,
	resource TEXT NOT NULL,
	resource_id TEXT NULL,
	old_values %s NULL,
	new_values %s NULL,
	ip_address TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at %s NOT NULL
)`, d.bytesType, d.bytesType, d.timeType),
	)
	return stmts
}

// EnsureSchema creates the record, category and audit tables when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range SchemaStatements(db.DriverName()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
