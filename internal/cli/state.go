package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/timeagnostic/internal/engine"
	"github.com/roach88/timeagnostic/internal/ir"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	At    string
	Hooks bool
}

// StateResult is an entity's state at one instant.
type StateResult struct {
	Entity            string      `json:"entity"`
	At                string      `json:"at"`
	Snapshot          string      `json:"snapshot,omitempty"`
	Undone            int         `json:"undone"`
	PreHistoryUnknown bool        `json:"pre_history_unknown,omitempty"`
	Quads             []string    `json:"quads"`
	Before            []StateView `json:"before,omitempty"`
	After             []StateView `json:"after,omitempty"`
}

// WriteText prints the state and, when requested, the surrounding states.
func (r StateResult) WriteText(w io.Writer, verbose bool) error {
	fmt.Fprintf(w, "=== %s at %s ===\n", r.Entity, r.At)
	switch {
	case r.PreHistoryUnknown:
		fmt.Fprintln(w, "(state unknown: provenance does not reach this far back)")
	case r.Snapshot == "":
		fmt.Fprintln(w, "(entity did not exist yet)")
	default:
		fmt.Fprintf(w, "snapshot: %s\n", r.Snapshot)
		writeQuads(w, r.Quads)
	}
	if verbose {
		fmt.Fprintf(w, "deltas undone: %d\n", r.Undone)
	}
	if len(r.Before) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- before ---")
		for _, st := range r.Before {
			writeStateView(w, st, verbose)
		}
	}
	if len(r.After) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- after ---")
		for _, st := range r.After {
			writeStateView(w, st, verbose)
		}
	}
	return nil
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state <entity-iri>",
		Short: "Show an entity as it was at a given time",
		Long: `Show the state of an entity at an arbitrary instant.

Only the snapshots generated after the instant are undone, newest first.
With --hooks the states recorded before and after the instant are listed
as well.

Examples:
  tab state --dataset ./dataset.nq --at 2021-06-01T00:00:00Z https://w3id.org/oc/meta/id/1
  tab state -c tab.json --at 2021-06-01 --hooks https://w3id.org/oc/meta/br/1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "instant, RFC 3339 or YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("at")
	cmd.Flags().BoolVar(&opts.Hooks, "hooks", false, "also list the states before and after the instant")

	return cmd
}

func runState(opts *StateOptions, entity string, cmd *cobra.Command) error {
	at, err := parseInstant(opts.At)
	if err != nil {
		f := newFormatter(opts.RootOptions, cmd)
		_ = f.Error(ErrCodeInvalidTime, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --at", err)
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

	var stateOpts []engine.StateOption
	if opts.Hooks {
		stateOpts = append(stateOpts, engine.WithHooks())
	}
	p, err := env.Reconstructor.StateAt(ctx, entity, at, stateOpts...)
	if err != nil {
		return f.Fail(ExitFailure, "failed to reconstruct state", err)
	}
	env.LogMetrics()

	result := StateResult{
		Entity:            p.Entity,
		At:                ir.TimeLabel(p.Time),
		Undone:            p.Undone,
		PreHistoryUnknown: p.PreHistoryUnknown,
		Quads:             ir.CanonicalGraph(p.Graph),
		Before:            stateViews(p.Before),
		After:             stateViews(p.After),
	}
	if p.Snapshot != nil {
		result.Snapshot = p.Snapshot.ID
	}
	return f.Success(result)
}
