package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/dorpcheck/internal/fixture"
	"github.com/roach88/dorpcheck/internal/runner"
)

// Executor runs the program under test against one fixture.
// *runner.Runner is the production implementation.
type Executor interface {
	Run(ctx context.Context, f fixture.Fixture) runner.Result
}

// Harness runs a fixture suite: every fixture concurrently, results funneled
// through one collector into an Aggregator.
type Harness struct {
	exec        Executor
	progress    io.Writer
	concurrency int
	attribute   bool
	program     string
	logger      *slog.Logger
	runIDs      RunIDGenerator
	now         func() time.Time
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithProgress sets where progress markers and the report are written.
// Default: discarded.
func WithProgress(w io.Writer) HarnessOption {
	return func(h *Harness) {
		h.progress = w
	}
}

// WithConcurrency caps the number of runs in flight. Zero or negative (the
// default) launches every fixture at once.
func WithConcurrency(n int) HarnessOption {
	return func(h *Harness) {
		h.concurrency = n
	}
}

// WithAttributedFailures tags each failure in the report with its fixture.
func WithAttributedFailures(on bool) HarnessOption {
	return func(h *Harness) {
		h.attribute = on
	}
}

// WithProgram records the program under test in the summary.
func WithProgram(program string) HarnessOption {
	return func(h *Harness) {
		h.program = program
	}
}

// WithLogger sets the logger for suite-level diagnostics.
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithRunIDGenerator overrides the run ID generator (for testing).
func WithRunIDGenerator(g RunIDGenerator) HarnessOption {
	return func(h *Harness) {
		h.runIDs = g
	}
}

// WithClock overrides the time source for summary timestamps (for testing).
func WithClock(now func() time.Time) HarnessOption {
	return func(h *Harness) {
		h.now = now
	}
}

// New creates a Harness that runs fixtures with exec.
func New(exec Executor, opts ...HarnessOption) *Harness {
	h := &Harness{
		exec:     exec,
		progress: io.Discard,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		runIDs:   UUIDv7Generator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes every fixture and returns the suite summary.
//
// Execution flow:
// 1. Launch one goroutine per fixture (bounded only by WithConcurrency)
// 2. Each goroutine loads the fixture, extracts the expectation, runs the
//    program and posts the result on a channel
// 3. A single collector drains exactly len(fixtures) results into the
//    aggregator, which streams markers and writes the report once
//
// Per-fixture failures (unreadable fixture, spawn error, timeout) become
// failing results and never abort the suite. Canceling ctx kills running
// children; their results are still collected so the report is always
// written.
func (h *Harness) Run(ctx context.Context, fixtures []fixture.Fixture) (*Summary, error) {
	summary := &Summary{
		RunID:     h.runIDs.Generate(),
		Program:   h.program,
		StartedAt: h.now(),
		Total:     len(fixtures),
	}

	h.logger.Info("suite started",
		"run_id", summary.RunID,
		"fixtures", len(fixtures),
		"concurrency", h.concurrency,
	)

	agg := NewAggregator(len(fixtures), h.progress, WithAttribution(h.attribute))

	results := make(chan runner.Result)
	go func() {
		var g errgroup.Group
		if h.concurrency > 0 {
			g.SetLimit(h.concurrency)
		}
		for _, f := range fixtures {
			g.Go(func() error {
				results <- h.runOne(ctx, f)
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	var recordErr error
	for r := range results {
		recorded, err := agg.Record(r)
		if err != nil {
			// Keep draining so no sender blocks forever.
			recordErr = err
			continue
		}
		h.logger.Debug("run recorded",
			"fixture", recorded.Fixture.Name,
			"pass", recorded.Pass,
			"exit_code", recorded.ExitCode,
			"duration", recorded.Duration,
			"error", recorded.ErrorText(),
		)
	}
	if recordErr != nil {
		return nil, fmt.Errorf("collect results: %w", recordErr)
	}

	summary.FinishedAt = h.now()
	summary.Results = agg.Results()
	summary.Passed, summary.Failed = agg.Counts()

	h.logger.Info("suite finished",
		"run_id", summary.RunID,
		"passed", summary.Passed,
		"failed", summary.Failed,
	)

	return summary, nil
}

// runOne produces the result for a single fixture. It never fails: errors
// become part of the result.
func (h *Harness) runOne(ctx context.Context, f fixture.Fixture) runner.Result {
	text, err := fixture.Load(f)
	if err != nil {
		h.logger.Warn("fixture unreadable", "fixture", f.Name, "error", err)
		return runner.Result{
			Fixture:  f,
			Actual:   err.Error(),
			ExitCode: -1,
			Err:      err,
		}
	}

	expected := fixture.ExpectedOutput(text)
	result := h.exec.Run(ctx, f)
	result.Expected = expected
	return result
}
