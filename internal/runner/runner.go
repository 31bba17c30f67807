// Package runner executes the program under test against a single fixture.
//
// The program is invoked as
//
//	<program> [args...] <fixture-path>
//
// with stdin attached to the null device. Standard output and standard error
// feed one shared accumulator in the order chunks arrive, which becomes the
// run's actual output. Exact interleaving between the two streams is whatever
// the scheduler delivers; per-stream copies are kept for diagnostics only.
//
// A run always produces exactly one Result. Spawn failures and timeouts are
// reported through Result.Err, never as a panic or a hang.
package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/roach88/dorpcheck/internal/fixture"
)

// DefaultWaitDelay bounds how long Run waits for the output pipes to drain
// after the process was killed (e.g. a grandchild still holds them open).
const DefaultWaitDelay = 2 * time.Second

// Runner launches the program under test. A Runner is safe for concurrent use;
// every Run call is independent and there is no retry.
type Runner struct {
	program   string
	args      []string
	dir       string
	env       []string
	timeout   time.Duration
	waitDelay time.Duration
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout kills a run that is still going after d and reports it as a
// *TimeoutError. Zero (the default) means runs are never timed out.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithWorkDir sets the working directory of the child process.
func WithWorkDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithEnv sets the environment of the child process (KEY=value entries).
// Nil inherits the harness environment.
func WithEnv(env []string) RunnerOption {
	return func(r *Runner) {
		r.env = env
	}
}

// WithLogger sets the logger for per-run diagnostics.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a Runner for program. args are passed before the fixture path,
// which lets an interpreter script be run as e.g. "node dorp.js <fixture>".
func New(program string, args []string, opts ...RunnerOption) *Runner {
	r := &Runner{
		program:   program,
		args:      append([]string(nil), args...),
		waitDelay: DefaultWaitDelay,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Program returns the program under test.
func (r *Runner) Program() string {
	return r.program
}

// Run executes the program against f and returns its captured output.
//
// The run completes when the process exits, whatever its exit code. The
// returned Result has Expected and Pass unset; comparison is the caller's job.
func (r *Runner) Run(ctx context.Context, f fixture.Fixture) Result {
	start := time.Now()
	result := Result{Fixture: f, ExitCode: -1}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := make([]string, 0, len(r.args)+1)
	args = append(args, r.args...)
	args = append(args, f.Path)

	cmd := exec.CommandContext(runCtx, r.program, args...)
	cmd.Dir = r.dir
	cmd.Env = r.env
	cmd.WaitDelay = r.waitDelay

	out := newCapture()
	cmd.Stdout = out.writer(streamStdout)
	cmd.Stderr = out.writer(streamStderr)

	if err := cmd.Start(); err != nil {
		// CommandContext refuses to start once the context is done.
		result.Err = r.contextError(ctx, runCtx, f)
		if result.Err == nil {
			result.Err = &SpawnError{Program: r.program, Err: err}
			r.logger.Warn("spawn failed",
				"fixture", f.Name,
				"program", r.program,
				"error", err,
			)
		}
		result.Actual = result.Err.Error()
		result.Duration = time.Since(start)
		return result
	}

	waitErr := cmd.Wait()
	result.Duration = time.Since(start)
	result.Actual = out.merged()
	result.Stdout = out.stream(streamStdout)
	result.Stderr = out.stream(streamStderr)
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr != nil {
		result.Err = r.contextError(ctx, runCtx, f)
		var exitErr *exec.ExitError
		if result.Err == nil && !errors.As(waitErr, &exitErr) {
			// Output may be truncated (e.g. exec.ErrWaitDelay); the exit code
			// alone never fails a run.
			r.logger.Warn("wait failed",
				"fixture", f.Name,
				"error", waitErr,
			)
		}
	}

	r.logger.Debug("run finished",
		"fixture", f.Name,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
		"bytes", len(result.Actual),
	)

	return result
}

// contextError reports why a run's context ended, or nil if it has not. A
// deadline on runCtx is the per-run timeout; anything on ctx is cancellation
// of the whole suite.
func (r *Runner) contextError(ctx, runCtx context.Context, f fixture.Fixture) error {
	switch {
	case r.timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return &TimeoutError{Fixture: f, Timeout: r.timeout}
	case ctx.Err() != nil:
		return &CanceledError{Fixture: f, Err: ctx.Err()}
	default:
		return nil
	}
}
