package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/dorpcheck/internal/harness"
)

// timeLayout is the stored timestamp format. Fixed-width so that text
// ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveRun records a suite run and its results in one transaction.
// Results are stored with seq = their position in sum.Results (completion
// order).
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: saving the same run ID
// twice keeps the first copy.
func (s *Store) SaveRun(ctx context.Context, sum *harness.Summary) (err error) {
	if sum == nil {
		return errors.New("save run: nil summary")
	}
	if sum.RunID == "" {
		return errors.New("save run: empty run ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, program, started_at, finished_at, total, passed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sum.RunID,
		sum.Program,
		formatTime(sum.StartedAt),
		formatTime(sum.FinishedAt),
		sum.Total,
		sum.Passed,
		sum.Failed,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", sum.RunID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save run %s: %w", sum.RunID, err)
	}
	if n == 0 {
		// Already recorded.
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results
		(run_id, seq, fixture, path, expected, actual, exit_code, duration_ns, error, pass)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save run %s: prepare: %w", sum.RunID, err)
	}
	defer stmt.Close()

	for i, r := range sum.Results {
		_, err = stmt.ExecContext(ctx,
			sum.RunID,
			int64(i),
			norm.NFC.String(r.Fixture.Name),
			r.Fixture.Path,
			r.Expected,
			r.Actual,
			r.ExitCode,
			r.Duration.Nanoseconds(),
			r.ErrorText(),
			boolToInt(r.Pass),
		)
		if err != nil {
			return fmt.Errorf("save run %s: result %d (%s): %w", sum.RunID, i, r.Fixture.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save run %s: commit: %w", sum.RunID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
