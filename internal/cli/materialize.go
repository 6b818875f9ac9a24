package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/timeagnostic/internal/config"
	"github.com/roach88/timeagnostic/internal/engine"
	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/store"
)

// MaterializeOptions holds flags for the materialize command.
type MaterializeOptions struct {
	*RootOptions
	File   string
	Driver string
	DSN    string
}

// MaterializeResult summarizes a materialized run.
type MaterializeResult struct {
	RunID     string   `json:"run_id"`
	Driver    string   `json:"driver"`
	Target    string   `json:"target"`
	Labels    []string `json:"labels"`
	Snapshots int      `json:"snapshots"`
	Quads     int      `json:"quads"`
	Warnings  []string `json:"warnings"`
}

// WriteText prints a one-line summary.
func (r MaterializeResult) WriteText(w io.Writer, verbose bool) error {
	fmt.Fprintf(w, "Materialized run %s: %d snapshots, %d quads -> %s (%s)\n",
		r.RunID, r.Snapshots, r.Quads, r.Target, r.Driver)
	if verbose {
		for _, label := range r.Labels {
			fmt.Fprintf(w, "  %s\n", label)
		}
	}
	writeWarnings(w, r.Warnings)
	return nil
}

// NewMaterializeCommand creates the materialize command.
func NewMaterializeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MaterializeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "materialize [sparql]",
		Short: "Run a query and store the snapshots it reached",
		Long: `Run a SPARQL SELECT query across time and store every composite
snapshot it was evaluated on.

Each snapshot becomes a named graph tagged with its dcterms:date. The sqlite3
and pgx drivers write to a SQL database; the jsonld driver writes one JSON-LD
document to a file, or to stdout with --dsn -.

Examples:
  tab materialize -c tab.json --driver sqlite3 --dsn ./snapshots.db --file ./citations.rq
  tab materialize -c tab.json --driver pgx --dsn postgres://tab@localhost/tab --file ./citations.rq
  tab materialize -c tab.json --driver jsonld --dsn ./snapshots.jsonld --file ./citations.rq`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaterialize(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the query from a file")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "sqlite3|pgx|jsonld (default from config)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "database path or URL, or JSON-LD output file (default from config)")

	return cmd
}

func runMaterialize(opts *MaterializeOptions, args []string, cmd *cobra.Command) error {
	query, err := readQuery(opts.File, args)
	if err != nil {
		f := newFormatter(opts.RootOptions, cmd)
		return f.Fail(ExitCommandError, "invalid query input", err)
	}

	f, env, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := env.Close(); closeErr != nil {
			env.Logger.Error("error closing history cache", "error", closeErr)
		}
	}()

	target := env.Config.Materialize
	if opts.Driver != "" {
		target.Driver = opts.Driver
	}
	if opts.DSN != "" {
		target.DSN = opts.DSN
	}
	if err := checkTarget(target); err != nil {
		return f.Fail(ExitCommandError, "invalid materialization target", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := env.Engine.Execute(ctx, query)
	if err != nil {
		return f.Fail(ExitFailure, "query failed", err)
	}

	result := MaterializeResult{
		RunID:    res.RunID,
		Driver:   target.Driver,
		Target:   target.DSN,
		Labels:   res.Labels,
		Warnings: res.Warnings,
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	quads := store.SnapshotQuads(target.GraphBase, res.RunID, res.Composite)
	result.Quads = len(quads)

	if target.Driver == config.DriverJSONLD {
		err = writeJSONLDTarget(target.DSN, cmd.OutOrStdout(), quads)
		result.Snapshots = len(res.Labels)
	} else {
		result.Snapshots, err = materializeSQL(ctx, target, query, res, env)
		var skipped []string
		skipped, err = partialWrite(result.Snapshots, err)
		result.Warnings = append(result.Warnings, skipped...)
	}
	if err != nil {
		return f.Fail(ExitCommandError, "failed to materialize snapshots", &LoadError{Code: ErrCodeWriteFailed, Message: "write snapshots", Err: err})
	}
	env.LogMetrics()

	// JSON-LD on stdout is the output itself.
	if target.Driver == config.DriverJSONLD && target.DSN == "-" {
		return nil
	}
	return f.SuccessRun(res.RunID, result)
}

func checkTarget(t config.Materialize) error {
	switch t.Driver {
	case config.DriverSQLite, config.DriverPostgres, config.DriverJSONLD:
	default:
		return fmt.Errorf("unsupported driver %q", t.Driver)
	}
	if t.DSN == "" {
		return fmt.Errorf("no target: set --dsn or materialize.dsn")
	}
	return nil
}

func materializeSQL(ctx context.Context, t config.Materialize, query string, res *engine.Result, env *Environment) (int, error) {
	st, err := store.Open(ctx, t.Driver, t.DSN,
		store.WithGraphBase(t.GraphBase),
		store.WithLogger(env.Logger),
	)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			env.Logger.Error("error closing database", "error", closeErr)
		}
	}()

	run := store.Run{ID: res.RunID, Query: query, CreatedAt: time.Now().UTC()}
	return st.Materialize(ctx, run, res.Composite)
}

// partialWrite turns the failures of individual snapshots into warnings
// once at least one snapshot reached the store.
func partialWrite(written int, err error) ([]string, error) {
	if err == nil {
		return nil, nil
	}
	if written == 0 || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	errs := []error{err}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	}
	warnings := make([]string, 0, len(errs))
	for _, e := range errs {
		warnings = append(warnings, "snapshot not materialized: "+e.Error())
	}
	return warnings, nil
}

func writeJSONLDTarget(path string, stdout io.Writer, quads []ir.Quad) error {
	if path == "-" {
		return store.WriteJSONLD(stdout, quads)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := store.WriteJSONLD(out, quads); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
