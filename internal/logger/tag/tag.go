// Package tag provides standardized tag functions for structured logging.
//
// Use these functions instead of raw strings to keep log output consistent
// across the codebase.
package tag

import (
	"log/slog"
	"time"
)

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// Step creates a tag for step names.
func Step(name string) slog.Attr {
	return slog.String("step", name)
}

// Job creates a tag for job (pipeline) names.
func Job(name string) slog.Attr {
	return slog.String("job", name)
}

// Action creates a tag for action names.
func Action(name string) slog.Attr {
	return slog.String("action", name)
}

// RunID creates a tag for step-run IDs.
func RunID(id string) slog.Attr {
	return slog.String("run-id", id)
}

// Partition creates a tag for the run-scoped partition value.
func Partition(value string) slog.Attr {
	return slog.String("partition", value)
}

// Status creates a tag for step or job statuses.
func Status(status string) slog.Attr {
	return slog.String("status", status)
}

// Attempt creates a tag for retry attempt numbers.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Duration creates a tag for elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// ExitCode creates a tag for process or job exit codes.
func ExitCode(code int) slog.Attr {
	return slog.Int("exit-code", code)
}
