package runner

import (
	"fmt"
	"time"

	"github.com/roach88/dorpcheck/internal/fixture"
)

// Result is the outcome of running one fixture.
type Result struct {
	Fixture fixture.Fixture `json:"fixture"`

	// Expected is the output derived from the fixture's annotations.
	// Filled in by the harness.
	Expected string `json:"expected"`

	// Actual is stdout and stderr merged in arrival order. For spawn and
	// fixture read failures it holds the error description instead.
	Actual string `json:"actual"`

	// Stdout and Stderr are per-stream copies kept for diagnostics.
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`

	// ExitCode is observed but does not decide pass/fail.
	// -1 when no process ran to completion.
	ExitCode int `json:"exit_code"`

	Duration time.Duration `json:"duration_ns"`

	// Err is set when the run could not produce real output: a
	// *fixture.FixtureReadError, *SpawnError, *TimeoutError or *CanceledError.
	Err error `json:"-"`

	// Pass is set by the harness after comparison.
	Pass bool `json:"pass"`
}

// ErrorText returns Err's message, or "" when the run had no error.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// SpawnError reports that the program under test could not be started.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a run was killed after exceeding its timeout.
type TimeoutError struct {
	Fixture fixture.Fixture
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run %s: timed out after %s", e.Fixture.Name, e.Timeout)
}

// CanceledError reports that a run was killed because the suite was canceled.
type CanceledError struct {
	Fixture fixture.Fixture
	Err     error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("run %s: %v", e.Fixture.Name, e.Err)
}

func (e *CanceledError) Unwrap() error {
	return e.Err
}
