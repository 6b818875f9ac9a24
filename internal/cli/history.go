package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/timeagnostic/internal/ir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Related bool
}

// EntityHistoryView is one reconstructed history.
type EntityHistoryView struct {
	Entity            string      `json:"entity"`
	NotFound          bool        `json:"not_found,omitempty"`
	PreHistoryUnknown bool        `json:"pre_history_unknown,omitempty"`
	KnownSince        string      `json:"known_since,omitempty"`
	States            []StateView `json:"states"`
	Now               []string    `json:"now"`
}

// HistoryResult holds the histories printed by the history command.
type HistoryResult struct {
	Entities []EntityHistoryView `json:"entities"`
	Warnings []string            `json:"warnings,omitempty"`
}

// WriteText prints every history, oldest state first, present last.
func (r HistoryResult) WriteText(w io.Writer, verbose bool) error {
	for i, h := range r.Entities {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s ===\n", h.Entity)
		if h.NotFound {
			fmt.Fprintln(w, "(no present data and no provenance)")
			continue
		}
		if h.PreHistoryUnknown {
			if h.KnownSince != "" {
				fmt.Fprintf(w, "(states before %s are unknown)\n", h.KnownSince)
			} else {
				fmt.Fprintln(w, "(no provenance: past states are unknown)")
			}
		}
		for _, st := range h.States {
			writeStateView(w, st, verbose)
		}
		fmt.Fprintf(w, "[%s]\n", ir.NowLabel)
		writeQuads(w, h.Now)
	}
	writeWarnings(w, r.Warnings)
	return nil
}

func newHistoryView(h *ir.EntityHistory) EntityHistoryView {
	v := EntityHistoryView{
		Entity:            h.Entity,
		NotFound:          h.IsEmpty(),
		PreHistoryUnknown: h.PreHistoryUnknown,
		States:            stateViews(h.States),
		Now:               ir.CanonicalGraph(h.Now),
	}
	if h.PreHistoryUnknown && !h.KnownSince.IsZero() {
		v.KnownSince = ir.TimeLabel(h.KnownSince)
	}
	return v
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <entity-iri>...",
		Short: "Reconstruct every state of one or more entities",
		Long: `Reconstruct the full history of entities from their provenance snapshots.

Entities are reconstructed concurrently. Each state is printed with the
snapshot that produced it, followed by the present state. With --related
the entities currently pointing at each entity are reconstructed too.
Entities that fail are reported as warnings.

Examples:
  tab history --dataset ./dataset.nq https://w3id.org/oc/meta/id/1
  tab history -c tab.json --related https://w3id.org/oc/meta/br/1
  tab history -c tab.json --format json https://w3id.org/oc/meta/id/1`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Related, "related", false, "also reconstruct entities that reference the entity")

	return cmd
}

func runHistory(opts *HistoryOptions, entities []string, cmd *cobra.Command) error {
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

	hs, err := env.Reconstructor.ReconstructMany(ctx, entities, opts.Related)
	if err != nil && len(hs) == 0 {
		return f.Fail(ExitFailure, "failed to reconstruct history", err)
	}
	env.LogMetrics()

	result := HistoryResult{
		Entities: make([]EntityHistoryView, 0, len(hs)),
		Warnings: errorMessages(err),
	}
	for _, e := range hs.Entities() {
		result.Entities = append(result.Entities, newHistoryView(hs[e]))
	}
	return f.Success(result)
}
