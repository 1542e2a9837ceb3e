package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reencode/internal/batch"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one batch invocation.
type Run struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	Recursive  bool      `json:"recursive"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	DeltaBytes int64     `json:"delta_bytes"`
}

// Finished reports whether FinishRun was called.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Entry is one recorded file result.
type Entry struct {
	Path        string        `json:"path"`
	Output      string        `json:"output,omitempty"`
	Kind        string        `json:"kind"`
	Reason      string        `json:"reason,omitempty"`
	BeforeBytes int64         `json:"before_bytes"`
	AfterBytes  int64         `json:"after_bytes"`
	DeltaBytes  int64         `json:"delta_bytes"`
	Elapsed     time.Duration `json:"elapsed"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// StartRun inserts a new run and returns it. An empty id is replaced by a
// fresh UUID.
func (s *Store) StartRun(ctx context.Context, id, root string, recursive bool) (Run, error) {
	if id == "" {
		id = uuid.NewString()
	}
	started := s.timestamp()
	if _, err := s.exec(ctx,
		`INSERT INTO runs (id, root, recursive, started_at) VALUES (?, ?, ?, ?)`,
		id, root, recursive, started,
	); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return Run{ID: id, Root: root, Recursive: recursive, StartedAt: parseTimestamp(sql.NullString{String: started, Valid: true})}, nil
}

// Record appends a file result to a run.
func (s *Store) Record(ctx context.Context, runID string, r batch.Result) error {
	_, err := s.exec(ctx,
		`INSERT INTO results (
            run_id, path, output, kind, reason,
            before_bytes, after_bytes, delta_bytes, elapsed_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Path, r.Output, r.Kind.String(), r.Reason,
		r.Before, r.After, r.Delta, r.Elapsed.Milliseconds(), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// FinishRun stores the final totals.
func (s *Store) FinishRun(ctx context.Context, runID string, totals batch.TotalsSnapshot) error {
	res, err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, skipped = ?, failed = ?, delta_bytes = ? WHERE id = ?`,
		s.timestamp(), totals.Processed, totals.Skipped, totals.Failed, totals.Delta, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, root, recursive, started_at, finished_at, processed, skipped, failed, delta_bytes
        FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads a single run.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, root, recursive, started_at, finished_at, processed, skipped, failed, delta_bytes
        FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// Results returns a run's entries in recording order.
func (s *Store) Results(ctx context.Context, runID string) ([]Entry, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, output, kind, reason, before_bytes, after_bytes, delta_bytes, elapsed_ms, recorded_at
        FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			output     sql.NullString
			reason     sql.NullString
			elapsedMS  int64
			recordedAt sql.NullString
		)
		if err := rows.Scan(&e.Path, &output, &e.Kind, &reason, &e.BeforeBytes, &e.AfterBytes,
			&e.DeltaBytes, &elapsedMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		e.Output = output.String
		e.Reason = reason.String
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		e.RecordedAt = parseTimestamp(recordedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run      Run
		started  sql.NullString
		finished sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Root, &run.Recursive, &started, &finished,
		&run.Processed, &run.Skipped, &run.Failed, &run.DeltaBytes); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	return run, nil
}

// RunRecorder binds a store to one run so it can serve as a batch.Recorder.
type RunRecorder struct {
	store *Store
	runID string
}

// Recorder returns a batch.Recorder writing into runID.
func (s *Store) Recorder(runID string) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// Record implements batch.Recorder.
func (r *RunRecorder) Record(ctx context.Context, result batch.Result) error {
	return r.store.Record(ctx, r.runID, result)
}

var _ batch.Recorder = (*RunRecorder)(nil)
