package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RunStatus is the outcome of a pipeline run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned by GetRun for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded pipeline run.
type Run struct {
	ID          string    `json:"id"`
	BrainDump   string    `json:"brain_dump"`
	Status      RunStatus `json:"status"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	TicketSlug  string    `json:"ticket_slug,omitempty"`
	// Outputs holds the stage outputs keyed by schema name.
	Outputs    map[string]json.RawMessage `json:"outputs,omitempty"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Duration   time.Duration              `json:"duration"`
}

// RecordRun inserts or replaces a run.
func (db *DB) RecordRun(r *Run) error {
	if r.ID == "" {
		return errors.New("run ID is required")
	}

	var outputs sql.NullString
	if len(r.Outputs) > 0 {
		data, err := json.Marshal(r.Outputs)
		if err != nil {
			return fmt.Errorf("marshal run outputs: %w", err)
		}
		outputs = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.Exec(`
		INSERT OR REPLACE INTO runs
			(id, brain_dump, status, failed_stage, error, ticket_slug, outputs, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.BrainDump,
		string(r.Status),
		nullString(r.FailedStage),
		nullString(r.Error),
		nullString(r.TicketSlug),
		outputs,
		formatTime(r.StartedAt),
		formatTime(r.FinishedAt),
		r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// GetRun returns the run with the given ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, brain_dump, status, failed_stage, error, ticket_slug, outputs, started_at, finished_at, duration_ms
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT id, brain_dump, status, failed_stage, error, ticket_slug, outputs, started_at, finished_at, duration_ms
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// PurgeOldRuns deletes runs started before now minus olderThan.
// Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		r                                   Run
		status                              string
		failedStage, errText, slug, outputs sql.NullString
		startedAt, finishedAt               string
		durationMS                          int64
	)
	if err := s.Scan(&r.ID, &r.BrainDump, &status, &failedStage, &errText, &slug, &outputs, &startedAt, &finishedAt, &durationMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	r.Status = RunStatus(status)
	r.FailedStage = failedStage.String
	r.Error = errText.String
	r.TicketSlug = slug.String
	r.Duration = time.Duration(durationMS) * time.Millisecond

	var err error
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	if outputs.Valid && outputs.String != "" {
		if err := json.Unmarshal([]byte(outputs.String), &r.Outputs); err != nil {
			return nil, fmt.Errorf("decode run outputs: %w", err)
		}
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
