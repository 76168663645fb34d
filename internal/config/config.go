package config

import (
	"time"
)

// Config holds the application configuration assembled by the loader.
type Config struct {
	// Global settings applied to every command.
	Global Global

	// Paths holds resolved file system locations.
	Paths Paths

	// Store holds the step-run store configuration.
	Store Store

	// Runner holds execution settings for the scheduler.
	Runner Runner

	// Warnings collected while resolving the configuration.
	Warnings []string

	// ConfigPath is the configuration file that was used, if any.
	ConfigPath string
}

// Global contains settings shared by all commands.
type Global struct {
	// Debug enables debug-level logging.
	Debug bool

	// LogFormat is either "text" or "json".
	LogFormat string

	// Quiet suppresses console log output.
	Quiet bool
}

// Paths contains resolved file system locations.
type Paths struct {
	// DataDir is where the default sqlite store lives.
	DataDir string

	// LogDir is where job log files are written.
	LogDir string
}

// Store configures the step-run store.
type Store struct {
	// Driver selects the registered store driver ("sqlite" or "postgres").
	Driver string

	// DSN is the driver-specific connection string. For sqlite it defaults
	// to a file under DataDir.
	DSN string

	// Table is the step-run table name.
	Table string

	// Retention controls the TTL stamped on every step-run row.
	Retention time.Duration
}

// Runner configures the scheduler.
type Runner struct {
	// Workers bounds the number of concurrently executing steps.
	// Zero means unbounded.
	Workers int

	// ErrorPolicy selects the error policy by name: "failFast",
	// "continueUnlessCritical" or "skipDependents".
	ErrorPolicy string

	// StepTimeout is the per-step execution deadline. Zero disables it.
	StepTimeout time.Duration
}

// DefaultRetention is the default TTL stamped on step-run rows.
const DefaultRetention = 365 * 24 * time.Hour
