package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dorpcheck/internal/config"
	"github.com/roach88/dorpcheck/internal/fixture"
	"github.com/roach88/dorpcheck/internal/harness"
	"github.com/roach88/dorpcheck/internal/runner"
	"github.com/roach88/dorpcheck/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Program     string
	Args        []string
	Dir         string
	Extension   string
	Timeout     time.Duration
	Concurrency int
	Attribute   bool
	Database    string
	Filter      []string
	WorkDir     string
	Env         []string

	// RunIDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator harness.RunIDGenerator

	// Clock allows overriding the wall clock (for testing).
	Clock func() time.Time
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [fixture-dir]",
		Short: "Run the fixture suite against an interpreter",
		Long: `Run every fixture in the fixture directory (default "test") against the
interpreter and compare its merged stdout and stderr with the expected output
taken from "# " annotations.

One marker is printed per fixture as it completes: "." for a pass, "!" for a
failure. After the last marker the actual output of every failed fixture is
printed. Exit status is 0 when all fixtures pass and 1 otherwise.

Example:
  dorpcheck run --program node --arg dorp.js
  dorpcheck run --program ./dorp --timeout 10s --db history.db test/
  DORPCHECK_PROGRAM=python3 dorpcheck run --filter 'arith*'
  dorpcheck run --program ./dorp --workdir /tmp --env DORP_TRACE=0`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Program, "program", "p", "", "interpreter to run each fixture with")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "argument passed before the fixture path (repeatable)")
	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", config.DefaultDir, "fixture directory")
	cmd.Flags().StringVar(&opts.Extension, "ext", fixture.DefaultExtension, "fixture file extension")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-fixture timeout (0 disables)")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "j", 0, "maximum concurrent runs (0 = unbounded)")
	cmd.Flags().BoolVar(&opts.Attribute, "attribute", false, "name each failure and show expected output and a diff")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringArrayVar(&opts.Filter, "filter", nil, "only run fixtures matching this glob (repeatable)")
	cmd.Flags().StringVar(&opts.WorkDir, "workdir", "", "working directory of the interpreter (default: current)")
	cmd.Flags().StringArrayVar(&opts.Env, "env", nil, "KEY=value added to the interpreter environment (repeatable)")

	return cmd
}

func runSuite(opts *RunOptions, args []string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := resolveConfig(opts, args, cmd)
	if err != nil {
		return err
	}
	logger.Debug("configuration resolved",
		"program", cfg.Program,
		"dir", cfg.Dir,
		"extension", cfg.Extension,
		"timeout", cfg.Timeout,
		"concurrency", cfg.Concurrency,
		"workdir", cfg.WorkDir,
	)

	fixtures, err := fixture.Discover(cfg.Dir, cfg.Extension)
	if err != nil {
		return WrapExitError(ExitCommandError, "fixture discovery failed", err)
	}
	if len(cfg.Filter) > 0 {
		fixtures, err = fixture.Filter(fixtures, cfg.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
	}

	// Open the history store before running so a bad path fails fast.
	var st *store.Store
	if cfg.Database != "" {
		st, err = store.Open(cfg.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	runnerOpts := []runner.RunnerOption{
		runner.WithTimeout(cfg.Timeout),
		runner.WithLogger(logger),
		runner.WithWorkDir(cfg.WorkDir),
	}
	if len(cfg.Env) > 0 {
		runnerOpts = append(runnerOpts, runner.WithEnv(append(os.Environ(), cfg.Env...)))
	}
	run := runner.New(cfg.Program, cfg.Args, runnerOpts...)

	progress := cmd.OutOrStdout()
	if opts.Format == "json" {
		progress = io.Discard
	}

	harnessOpts := []harness.HarnessOption{
		harness.WithProgress(progress),
		harness.WithConcurrency(cfg.Concurrency),
		harness.WithAttributedFailures(cfg.Attribute),
		harness.WithProgram(cfg.Program),
		harness.WithLogger(logger),
	}
	if opts.RunIDGenerator != nil {
		harnessOpts = append(harnessOpts, harness.WithRunIDGenerator(opts.RunIDGenerator))
	}
	if opts.Clock != nil {
		harnessOpts = append(harnessOpts, harness.WithClock(opts.Clock))
	}

	summary, err := harness.New(run, harnessOpts...).Run(ctx, fixtures)
	if err != nil {
		return WrapExitError(ExitCommandError, "suite run failed", err)
	}

	if st != nil {
		// Record even when interrupted; the summary is complete either way.
		if err := st.SaveRun(context.WithoutCancel(ctx), summary); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		logger.Debug("run recorded", "run_id", summary.RunID, "db", cfg.Database)
	}

	if opts.Format == "json" {
		if err := newFormatter(opts.RootOptions, cmd).Success(newSummaryView(summary)); err != nil {
			return err
		}
	}

	if !summary.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d fixtures failed", summary.Failed, summary.Total))
	}
	return nil
}

// resolveConfig layers config file, environment and explicitly set flags,
// then validates the result.
func resolveConfig(opts *RunOptions, args []string, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("program") {
		cfg.Program = opts.Program
	}
	if flags.Changed("arg") {
		cfg.Args = opts.Args
	}
	if flags.Changed("dir") {
		cfg.Dir = opts.Dir
	}
	if len(args) == 1 {
		cfg.Dir = args[0]
	}
	if flags.Changed("ext") {
		cfg.Extension = opts.Extension
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.Timeout
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = opts.Concurrency
	}
	if flags.Changed("attribute") {
		cfg.Attribute = opts.Attribute
	}
	if flags.Changed("db") {
		cfg.Database = opts.Database
	}
	if flags.Changed("filter") {
		cfg.Filter = opts.Filter
	}
	if flags.Changed("workdir") {
		cfg.WorkDir = opts.WorkDir
	}
	if flags.Changed("env") {
		cfg.Env = opts.Env
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// signalContext derives a context canceled on SIGINT or SIGTERM. Canceling
// kills running interpreters; the suite still reports.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, stopping suite", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
