// Package recorder persists one row per step invocation so that a job's
// history can be inspected after the fact. Writes go through sessions
// that stage field changes and flush them as an upsert keyed by run_id.
package recorder

import "time"

// Step-run statuses as stored in the status column.
const (
	StatusQueued  = "QUEUED"
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// CreatedBySystem is the default audit identity for rows written by the
// runner itself.
const CreatedBySystem = "system"

// StepRun is one persisted step invocation.
type StepRun struct {
	RunID          string
	JobName        string
	StepName       string
	Status         string
	StartedAt      *time.Time
	EndedAt        *time.Time
	PartitionValue string
	Params         string
	ErrorMessage   string
	LogPath        string
	TTL            time.Time
	CreatedBy      string
	CreatedAt      time.Time
	LastUpdatedAt  time.Time
}

// columns is the canonical column order used when building upsert
// statements. run_id is the conflict key and always comes first.
var columns = []string{
	"run_id",
	"job_name",
	"step_name",
	"status",
	"start_ts",
	"end_ts",
	"partition_value",
	"params",
	"error_message",
	"log_path",
	"ttl",
	"created_by",
	"created_at",
	"last_updated_at",
}
