// Package postgres provides the PostgreSQL driver for the step-run store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stepline-org/stepline/internal/recorder"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// PostgresDriver implements the Driver interface for PostgreSQL.
type PostgresDriver struct{}

// Name returns the driver name.
func (d *PostgresDriver) Name() string {
	return "postgres"
}

// Open establishes a connection to PostgreSQL.
func (d *PostgresDriver) Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// Placeholder returns the PostgreSQL positional placeholder.
func (d *PostgresDriver) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func init() {
	recorder.RegisterDriver(&PostgresDriver{})
}
