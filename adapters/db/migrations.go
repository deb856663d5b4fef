package db

import (
	_ "embed"
	"fmt"
)

//go:embed migrations/01_create_projects.up.sql
var createProjectsUp string

//go:embed migrations/02_create_tasks.up.sql
var createTasksUp string

//go:embed migrations/03_create_audit_logs.up.sql
var createAuditLogsUp string

// Migrate applies the board schema.
func (db *DB) Migrate() error {
	db.log.Debug("running taskboard migrations")

	if _, err := db.conn.Exec(createProjectsUp); err != nil {
		return fmt.Errorf("apply projects migration: %w", err)
	}

	if _, err := db.conn.Exec(createTasksUp); err != nil {
		return fmt.Errorf("apply tasks migration: %w", err)
	}

	if _, err := db.conn.Exec(createAuditLogsUp); err != nil {
		return fmt.Errorf("apply audit logs migration: %w", err)
	}

	db.log.Debug("taskboard migrations finished")
	return nil
}
