// Package sqlite provides the SQLite driver for the step-run store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stepline-org/stepline/internal/recorder"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteDriver implements the Driver interface for SQLite.
type SQLiteDriver struct{}

// Name returns the driver name.
func (d *SQLiteDriver) Name() string {
	return "sqlite"
}

// Open establishes a connection to the SQLite database file.
func (d *SQLiteDriver) Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection sidesteps SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	return db, nil
}

// Placeholder returns the SQLite positional placeholder.
func (d *SQLiteDriver) Placeholder(_ int) string {
	return "?"
}

func init() {
	recorder.RegisterDriver(&SQLiteDriver{})
}
