package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/timeagnostic/internal/config"
	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Driver string
	DSN    string
	Label  string
}

// RunsResult lists materialized runs.
type RunsResult struct {
	Runs []store.Run `json:"runs"`
}

// WriteText prints one run per line.
func (r RunsResult) WriteText(w io.Writer, verbose bool) error {
	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "(no runs)")
		return nil
	}
	for _, run := range r.Runs {
		fmt.Fprintf(w, "%s\t%s\n", run.ID, ir.TimeLabel(run.CreatedAt))
		if verbose {
			fmt.Fprintf(w, "  %s\n", run.Query)
		}
	}
	return nil
}

// SnapshotsResult lists the snapshots of one run.
type SnapshotsResult struct {
	RunID     string                 `json:"run_id"`
	Snapshots []store.SnapshotRecord `json:"snapshots"`
}

// WriteText prints one snapshot per line.
func (r SnapshotsResult) WriteText(w io.Writer, verbose bool) error {
	if len(r.Snapshots) == 0 {
		fmt.Fprintf(w, "(no snapshots for run %s)\n", r.RunID)
		return nil
	}
	for _, s := range r.Snapshots {
		fmt.Fprintf(w, "%s\t%d quads\t%s\n", s.Label, s.Quads, s.GraphIRI)
		if verbose {
			fmt.Fprintf(w, "  fingerprint %s\n", s.Fingerprint)
		}
	}
	return nil
}

// GraphResult is one stored snapshot graph.
type GraphResult struct {
	RunID string   `json:"run_id"`
	Label string   `json:"label"`
	Quads []string `json:"quads"`
}

// WriteText prints the graph as sorted N-Quads.
func (r GraphResult) WriteText(w io.Writer, verbose bool) error {
	fmt.Fprintf(w, "=== %s @ %s ===\n", r.RunID, r.Label)
	writeQuads(w, r.Quads)
	return nil
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Inspect materialized runs",
		Long: `List the runs stored by materialize, the snapshots of one run, or the
graph of one snapshot.

Examples:
  tab runs --dsn ./snapshots.db
  tab runs --dsn ./snapshots.db 0190f5c2-7c1e-7d4a-9a49-2f1c3b8e0e11
  tab runs --dsn ./snapshots.db 0190f5c2-7c1e-7d4a-9a49-2f1c3b8e0e11 --label now`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "sqlite3|pgx (default from config)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "database path or URL (default from config)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "print the graph of the snapshot with this label")

	return cmd
}

func runRuns(opts *RunsOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to load config", err)
	}
	target := cfg.Materialize
	if opts.Driver != "" {
		target.Driver = opts.Driver
	}
	if opts.DSN != "" {
		target.DSN = opts.DSN
	}
	if target.Driver == config.DriverJSONLD {
		return f.Fail(ExitCommandError, "invalid store", fmt.Errorf("runs are only kept by the sqlite3 and pgx drivers"))
	}
	if err := checkTarget(target); err != nil {
		return f.Fail(ExitCommandError, "invalid store", err)
	}
	if opts.Label != "" && len(args) == 0 {
		return f.Fail(ExitCommandError, "invalid arguments", fmt.Errorf("--label needs a run ID"))
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	st, err := store.Open(ctx, target.Driver, target.DSN,
		store.WithGraphBase(target.GraphBase),
		store.WithLogger(logger),
	)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	switch {
	case len(args) == 0:
		runs, err := st.Runs(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, "failed to list runs", err)
		}
		return f.Success(RunsResult{Runs: runs})

	case opts.Label == "":
		snaps, err := st.Snapshots(ctx, args[0])
		if err != nil {
			return f.Fail(ExitCommandError, "failed to list snapshots", err)
		}
		return f.SuccessRun(args[0], SnapshotsResult{RunID: args[0], Snapshots: snaps})

	default:
		g, err := st.Graph(ctx, args[0], opts.Label)
		if err != nil {
			return f.Fail(ExitFailure, "failed to read snapshot", err)
		}
		return f.SuccessRun(args[0], GraphResult{RunID: args[0], Label: opts.Label, Quads: ir.CanonicalGraph(g)})
	}
}
