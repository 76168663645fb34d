// Package build holds application metadata set at build time.
package build

var (
	// AppName is the human-readable application name.
	AppName = "Stepline"

	// Slug is the machine-friendly name used for env var prefixes and paths.
	Slug = "stepline"

	// Version is set via ldflags at build time.
	Version = "0.0.0"
)
