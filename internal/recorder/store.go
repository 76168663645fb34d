package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stepline-org/stepline/internal/config"
)

// Store writes and reads step-run rows through a registered driver.
// One Store is opened per job run and closed when the run finishes.
type Store struct {
	db        *sql.DB
	driver    Driver
	table     string
	retention time.Duration
}

// Open connects to the configured store backend and ensures the
// step-run table exists.
func Open(ctx context.Context, cfg config.Store) (*Store, error) {
	driver, ok := GetDriver(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}

	db, err := driver.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = config.DefaultRetention
	}

	store := &Store{
		db:        db,
		driver:    driver,
		table:     cfg.Table,
		retention: retention,
	}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id          TEXT PRIMARY KEY,
	job_name        TEXT NOT NULL,
	step_name       TEXT NOT NULL,
	status          TEXT NOT NULL,
	start_ts        TIMESTAMP,
	end_ts          TIMESTAMP,
	partition_value TEXT,
	params          TEXT,
	error_message   TEXT,
	log_path        TEXT,
	ttl             TIMESTAMP NOT NULL,
	created_by      TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	last_updated_at TIMESTAMP NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create step-run table: %w", err)
	}

	index := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_job_name ON %s (job_name, created_at)",
		s.table, s.table,
	)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to create step-run index: %w", err)
	}
	return nil
}

// upsert writes one run's row. The insert arm always carries the full
// field set so the NOT NULL columns are satisfied even when the row
// already exists; the update arm touches only the changed columns.
func (s *Store) upsert(ctx context.Context, runID string, fields map[string]any, changed map[string]bool) error {
	cols := []string{"run_id"}
	args := []any{runID}
	var updates []string
	for _, col := range columns {
		val, ok := fields[col]
		if !ok || col == "run_id" {
			continue
		}
		cols = append(cols, col)
		args = append(args, val)
		if changed[col] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = s.driver.Placeholder(i + 1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (run_id) DO UPDATE SET %s",
		s.table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert step run %s: %w", runID, err)
	}
	return nil
}

// Recent returns the most recently created step runs, newest first.
// jobName filters to one job when non-empty.
func (s *Store) Recent(ctx context.Context, jobName string, limit int) ([]StepRun, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), s.table)
	var args []any
	if jobName != "" {
		query += " WHERE job_name = " + s.driver.Placeholder(1)
		args = append(args, jobName)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query step runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []StepRun
	for rows.Next() {
		var (
			run              StepRun
			startTS, endTS   sql.NullTime
			partition        sql.NullString
			params, errMsg   sql.NullString
			logPath, creator sql.NullString
		)
		if err := rows.Scan(
			&run.RunID, &run.JobName, &run.StepName, &run.Status,
			&startTS, &endTS, &partition, &params, &errMsg, &logPath,
			&run.TTL, &creator, &run.CreatedAt, &run.LastUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step run: %w", err)
		}
		if startTS.Valid {
			run.StartedAt = &startTS.Time
		}
		if endTS.Valid {
			run.EndedAt = &endTS.Time
		}
		run.PartitionValue = partition.String
		run.Params = params.String
		run.ErrorMessage = errMsg.String
		run.LogPath = logPath.String
		run.CreatedBy = creator.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Prune deletes rows whose TTL has passed and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE ttl < %s", s.table, s.driver.Placeholder(1))
	res, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune step runs: %w", err)
	}
	return res.RowsAffected()
}
