package harness

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/dorpcheck/internal/runner"
)

// RunIDGenerator generates the identifier of one suite run.
// Implemented by UUIDv7Generator (production) and
// testutil.FixedRunIDGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs, so stored runs
// sort by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Summary is the outcome of one suite run.
type Summary struct {
	RunID      string          `json:"run_id"`
	Program    string          `json:"program,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Total      int             `json:"total"`
	Passed     int             `json:"passed"`
	Failed     int             `json:"failed"`
	Results    []runner.Result `json:"results"` // completion order
}

// OK reports whether every run passed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Failures returns the failed results in completion order.
func (s *Summary) Failures() []runner.Result {
	failures := []runner.Result{}
	for _, r := range s.Results {
		if !r.Pass {
			failures = append(failures, r)
		}
	}
	return failures
}
