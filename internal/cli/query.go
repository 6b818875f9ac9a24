package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timeagnostic/internal/engine"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	File string
}

// QueryResult is a time-agnostic query answer: solutions per snapshot.
type QueryResult struct {
	RunID     string                         `json:"run_id"`
	Vars      []string                       `json:"vars"`
	Labels    []string                       `json:"labels"`
	Snapshots map[string][]map[string]string `json:"snapshots"`
	Entities  []string                       `json:"entities"`
	Rounds    int                            `json:"rounds"`
	Warnings  []string                       `json:"warnings"`
}

func newQueryResult(res *engine.Result) QueryResult {
	out := QueryResult{
		RunID:     res.RunID,
		Vars:      res.Vars,
		Labels:    res.Labels,
		Snapshots: make(map[string][]map[string]string, len(res.Labels)),
		Entities:  res.Entities,
		Rounds:    res.Rounds,
		Warnings:  res.Warnings,
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	for _, label := range res.Labels {
		rows := make([]map[string]string, 0, len(res.Snapshots[label]))
		for _, t := range res.Snapshots[label] {
			rows = append(rows, tupleView(res.Vars, t))
		}
		out.Snapshots[label] = rows
	}
	return out
}

// WriteText prints one tab-separated table per snapshot label.
func (r QueryResult) WriteText(w io.Writer, verbose bool) error {
	if verbose {
		fmt.Fprintf(w, "Run: %s (%d entities, %d rounds)\n\n", r.RunID, len(r.Entities), r.Rounds)
	}
	header := make([]string, len(r.Vars))
	for i, v := range r.Vars {
		header[i] = "?" + v
	}
	for i, label := range r.Labels {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s ===\n", label)
		rows := r.Snapshots[label]
		if len(rows) == 0 {
			fmt.Fprintln(w, "(no results)")
			continue
		}
		fmt.Fprintln(w, strings.Join(header, "\t"))
		for _, row := range rows {
			fmt.Fprintln(w, tupleLine(r.Vars, row))
		}
	}
	writeWarnings(w, r.Warnings)
	return nil
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [sparql]",
		Short: "Run a SELECT query against every snapshot",
		Long: `Run a SPARQL SELECT query across time.

The entities named in the query are reconstructed, their histories
aligned on a common timeline and the query evaluated on every moment any
of them changed, and on the present. Variables that lead to further
entities are resolved round by round.

Entities that cannot be reconstructed are reported as warnings. A query
that names no IRI or literal is rejected without reading any source.

Examples:
  tab query --dataset ./dataset.nq 'SELECT ?cited WHERE { <https://w3id.org/oc/meta/br/1> <http://purl.org/spar/cito/cites> ?cited }'
  tab query -c tab.json --file ./citations.rq
  tab query -c tab.json --format json --file ./citations.rq`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the query from a file")

	return cmd
}

// readQuery returns the query given as argument or through --file.
func readQuery(file string, args []string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("give the query as an argument or with --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read query: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return args[0], nil
	default:
		return "", fmt.Errorf("no query: give it as an argument or with --file")
	}
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
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

	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := env.Engine.Execute(ctx, query)
	if err != nil {
		return f.Fail(ExitFailure, "query failed", err)
	}
	env.LogMetrics()

	return f.SuccessRun(res.RunID, newQueryResult(res))
}
