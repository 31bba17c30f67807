package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ErrRunNotFound is returned when a run ID has no stored run.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one stored suite run.
type RunRecord struct {
	ID         string    `json:"id"`
	Program    string    `json:"program"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
}

// ResultRecord is one stored fixture result.
type ResultRecord struct {
	RunID    string        `json:"run_id"`
	Seq      int64         `json:"seq"`
	Fixture  string        `json:"fixture"`
	Path     string        `json:"path"`
	Expected string        `json:"expected"`
	Actual   string        `json:"actual"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
	Pass     bool          `json:"pass"`
}

// ListRuns returns stored runs, newest first. limit <= 0 returns all runs.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, program, started_at, finished_at, total, passed, failed
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a single run by ID.
// Returns an error wrapping ErrRunNotFound if the run doesn't exist.
func (s *Store) ReadRun(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, program, started_at, finished_at, total, passed, failed
		FROM runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ReadResults returns a run's results ordered by seq (completion order).
//
// Returns an empty slice (not nil) if the run has no results.
func (s *Store) ReadResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, fixture, path, expected, actual, exit_code, duration_ns, error, pass
		FROM results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

// FixtureHistory returns the most recent results for one fixture across
// runs, newest run first. limit <= 0 returns all of them.
func (s *Store) FixtureHistory(ctx context.Context, fixture string, limit int) ([]ResultRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.seq, r.fixture, r.path, r.expected, r.actual,
		       r.exit_code, r.duration_ns, r.error, r.pass
		FROM results r
		JOIN runs u ON r.run_id = u.id
		WHERE r.fixture = ?
		ORDER BY u.started_at DESC, u.id COLLATE BINARY DESC
		LIMIT ?
	`, norm.NFC.String(fixture), limit)
	if err != nil {
		return nil, fmt.Errorf("query fixture history: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		run               RunRecord
		started, finished string
	)
	if err := row.Scan(&run.ID, &run.Program, &started, &finished, &run.Total, &run.Passed, &run.Failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: parse started_at: %w", run.ID, err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: parse finished_at: %w", run.ID, err)
	}
	return run, nil
}

func collectResults(rows *sql.Rows) ([]ResultRecord, error) {
	results := []ResultRecord{}
	for rows.Next() {
		var (
			r          ResultRecord
			durationNS int64
			pass       int
		)
		err := rows.Scan(&r.RunID, &r.Seq, &r.Fixture, &r.Path, &r.Expected, &r.Actual,
			&r.ExitCode, &durationNS, &r.Error, &pass)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Duration = time.Duration(durationNS)
		r.Pass = pass == 1
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
