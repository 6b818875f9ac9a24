package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/timeagnostic/internal/ir"
)

// StateView is one state of an entity as printed by the CLI.
type StateView struct {
	Label         string   `json:"label"`
	Snapshot      string   `json:"snapshot,omitempty"`
	Agent         string   `json:"responsible_agent,omitempty"`
	PrimarySource string   `json:"primary_source,omitempty"`
	Quads         []string `json:"quads"`
}

func newStateView(label string, g *ir.Graph, s *ir.Snapshot) StateView {
	v := StateView{Label: label, Quads: ir.CanonicalGraph(g)}
	if s != nil {
		v.Snapshot = s.ID
		v.Agent = s.ResponsibleAgent
		v.PrimarySource = s.PrimarySource
	}
	return v
}

func stateViews(states []ir.State) []StateView {
	out := make([]StateView, len(states))
	for i, st := range states {
		out[i] = newStateView(ir.TimeLabel(st.Time), st.Graph, st.Snapshot)
	}
	return out
}

func writeStateView(w io.Writer, v StateView, verbose bool) {
	fmt.Fprintf(w, "[%s]", v.Label)
	if v.Snapshot != "" {
		fmt.Fprintf(w, " %s", v.Snapshot)
	}
	if verbose && v.Agent != "" {
		fmt.Fprintf(w, " by %s", v.Agent)
	}
	if verbose && v.PrimarySource != "" {
		fmt.Fprintf(w, " from %s", v.PrimarySource)
	}
	fmt.Fprintln(w)
	writeQuads(w, v.Quads)
}

func writeQuads(w io.Writer, quads []string) {
	if len(quads) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	for _, q := range quads {
		fmt.Fprintf(w, "  %s\n", q)
	}
}

// tupleView renders a tuple as variable -> N-Triples term. Unbound
// variables are left out.
func tupleView(vars []string, t ir.Tuple) map[string]string {
	out := make(map[string]string, len(vars))
	for i, v := range vars {
		if i < len(t) && !t[i].IsZero() {
			out[v] = t[i].String()
		}
	}
	return out
}

func tupleLine(vars []string, row map[string]string) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		if term, ok := row[v]; ok {
			parts[i] = term
		} else {
			parts[i] = "-"
		}
	}
	return strings.Join(parts, "\t")
}

// parseInstant accepts RFC 3339 timestamps with or without a zone, or a
// bare date. Times without a zone are UTC.
func parseInstant(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
}

func writeWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Warnings:")
	for _, msg := range warnings {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}

// errorMessages flattens a joined error into its messages.
func errorMessages(err error) []string {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
