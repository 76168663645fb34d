package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session records one step invocation. Field changes are staged in
// memory and flushed to the store on each state transition: the update
// arm of the upsert touches only the staged columns, while the identity
// fields fixed at session creation ride along in every insert arm so a
// flush is valid whether or not the row exists yet. A crash between
// transitions leaves the last flushed state visible.
//
// Sessions are not shared: the scheduler creates one session per step
// invocation and drives it from the goroutine running that step.
type Session struct {
	store *Store
	runID string

	mu     sync.Mutex
	base   map[string]any
	staged map[string]any
}

// Session starts a new step-run session in QUEUED state. The row is not
// written until Create is called.
func (s *Store) Session(jobName, stepName, partitionValue string, params map[string]any) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run ID: %w", err)
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step params: %w", err)
	}

	now := time.Now()
	sess := &Session{
		store: s,
		runID: id.String(),
		base: map[string]any{
			"job_name":        jobName,
			"step_name":       stepName,
			"partition_value": partitionValue,
			"params":          string(encoded),
			"ttl":             now.Add(s.retention),
			"created_by":      CreatedBySystem,
			"created_at":      now,
		},
		staged: map[string]any{},
	}
	sess.stage("status", StatusQueued)
	return sess, nil
}

// RunID returns the unique identifier of this step run.
func (s *Session) RunID() string {
	return s.runID
}

// SetLogPath stages the log file location for the next flush.
func (s *Session) SetLogPath(path string) {
	s.stage("log_path", path)
}

// Create persists the initial QUEUED row.
func (s *Session) Create(ctx context.Context) error {
	return s.flush(ctx)
}

// Start marks the run RUNNING and stamps the start time.
func (s *Session) Start(ctx context.Context) error {
	s.stage("status", StatusRunning)
	s.stage("start_ts", time.Now())
	return s.flush(ctx)
}

// Succeed marks the run SUCCESS and stamps the end time.
func (s *Session) Succeed(ctx context.Context) error {
	s.stage("status", StatusSuccess)
	s.stage("end_ts", time.Now())
	return s.flush(ctx)
}

// Fail marks the run FAILED with the error message and end time.
func (s *Session) Fail(ctx context.Context, stepErr error) error {
	s.stage("status", StatusFailed)
	s.stage("end_ts", time.Now())
	if stepErr != nil {
		s.stage("error_message", stepErr.Error())
	}
	return s.flush(ctx)
}

// Skip marks the run SKIPPED without ever starting it.
func (s *Session) Skip(ctx context.Context) error {
	s.stage("status", StatusSkipped)
	return s.flush(ctx)
}

func (s *Session) stage(field string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[field] = value
}

// flush writes base + staged fields and clears the stage. Staged fields
// are kept on failure so the next transition retries the write.
func (s *Session) flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged["last_updated_at"] = time.Now()

	fields := make(map[string]any, len(s.base)+len(s.staged))
	changed := make(map[string]bool, len(s.staged))
	for k, v := range s.base {
		fields[k] = v
	}
	for k, v := range s.staged {
		fields[k] = v
		changed[k] = true
	}

	if err := s.store.upsert(ctx, s.runID, fields, changed); err != nil {
		return err
	}
	for k, v := range s.staged {
		s.base[k] = v
	}
	s.staged = map[string]any{}
	return nil
}
