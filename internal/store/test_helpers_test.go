package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/dorpcheck/internal/fixture"
	"github.com/roach88/dorpcheck/internal/harness"
	"github.com/roach88/dorpcheck/internal/runner"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestResult creates a result with minimal required fields.
func createTestResult(name, expected, actual string) runner.Result {
	return runner.Result{
		Fixture:  fixture.Fixture{Path: "test/" + name, Name: name},
		Expected: expected,
		Actual:   actual,
		Duration: 3 * time.Millisecond,
		Pass:     expected == actual,
	}
}

// createTestSummary creates a summary started at base and counting results.
func createTestSummary(runID string, base time.Time, results ...runner.Result) *harness.Summary {
	sum := &harness.Summary{
		RunID:      runID,
		Program:    "node",
		StartedAt:  base,
		FinishedAt: base.Add(time.Second),
		Total:      len(results),
		Results:    results,
	}
	for _, r := range results {
		if r.Pass {
			sum.Passed++
		} else {
			sum.Failed++
		}
	}
	return sum
}
