package recorder

import (
	"context"
	"database/sql"
)

// Driver abstracts the database-specific parts of the step-run store.
// Each backend (SQLite, PostgreSQL) implements this interface and
// registers itself on import.
type Driver interface {
	// Name returns the driver identifier (e.g., "postgres", "sqlite").
	Name() string

	// Open establishes a connection pool for the given DSN.
	Open(ctx context.Context, dsn string) (*sql.DB, error)

	// Placeholder returns the positional placeholder for the nth
	// parameter ("?" for SQLite, "$n" for PostgreSQL).
	Placeholder(n int) string
}

// DriverRegistry holds registered database drivers.
type DriverRegistry struct {
	drivers map[string]Driver
}

// NewDriverRegistry creates a new driver registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{
		drivers: make(map[string]Driver),
	}
}

// Register adds a driver to the registry.
func (r *DriverRegistry) Register(driver Driver) {
	r.drivers[driver.Name()] = driver
}

// Get retrieves a driver by name.
func (r *DriverRegistry) Get(name string) (Driver, bool) {
	driver, ok := r.drivers[name]
	return driver, ok
}

// globalRegistry is the default driver registry.
var globalRegistry = NewDriverRegistry()

// RegisterDriver registers a driver in the global registry.
func RegisterDriver(driver Driver) {
	globalRegistry.Register(driver)
}

// GetDriver retrieves a driver from the global registry.
func GetDriver(name string) (Driver, bool) {
	return globalRegistry.Get(name)
}
