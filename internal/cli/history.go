package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dorpcheck/internal/config"
	"github.com/roach88/dorpcheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Fixture  string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded suite runs",
		Long: `Show suite runs recorded with "dorpcheck run --db".

Without --run or --fixture, lists runs newest first. --run shows every result
of one run in completion order. --fixture shows one fixture across runs.

Example:
  dorpcheck history --db history.db
  dorpcheck history --db history.db --run 01928c4e-...
  dorpcheck history --db history.db --fixture arith.dorp --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config or DORPCHECK_DB)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the results of one run")
	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "show one fixture across runs")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to show (0 = all)")
	cmd.MarkFlagsMutuallyExclusive("run", "fixture")

	return cmd
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load configuration", err)
		}
		dbPath = cfg.Database
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set "+config.EnvDatabase)
	}

	// Open would create a missing database; history only reads.
	if _, err := os.Stat(dbPath); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)
	out := cmd.OutOrStdout()

	switch {
	case opts.RunID != "":
		run, err := st.ReadRun(ctx, opts.RunID)
		if err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				return WrapExitError(ExitCommandError, "unknown run", err)
			}
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		results, err := st.ReadResults(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read results", err)
		}
		if opts.Format == "json" {
			return formatter.Success(map[string]any{"run": run, "results": results})
		}
		writeRun(out, run)
		for _, r := range results {
			writeResult(out, r)
		}

	case opts.Fixture != "":
		results, err := st.FixtureHistory(ctx, opts.Fixture, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read fixture history", err)
		}
		if opts.Format == "json" {
			return formatter.Success(results)
		}
		if len(results) == 0 {
			fmt.Fprintf(out, "No recorded results for %s.\n", opts.Fixture)
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(out, "%s  %s\n", r.RunID, status(r.Pass))
		}

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No recorded runs.")
			return nil
		}
		for _, run := range runs {
			writeRun(out, run)
		}
	}

	return nil
}

func writeRun(w io.Writer, run store.RunRecord) {
	fmt.Fprintf(w, "%s  %s  %d/%d passed  %s\n",
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.Passed,
		run.Total,
		run.Program,
	)
}

func writeResult(w io.Writer, r store.ResultRecord) {
	fmt.Fprintf(w, "  %s %s\n", status(r.Pass), r.Fixture)
	if r.Pass {
		return
	}
	fmt.Fprintf(w, "    expected: %q\n", r.Expected)
	fmt.Fprintf(w, "    actual:   %q\n", r.Actual)
	if r.Error != "" {
		fmt.Fprintf(w, "    error:    %s\n", r.Error)
	}
}

func status(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
