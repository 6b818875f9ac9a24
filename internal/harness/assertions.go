package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/timeagnostic/internal/engine"
	"github.com/roach88/timeagnostic/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Labels   []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Labels) > 0 {
		fmt.Fprintf(&buf, "\nSnapshots:\n")
		for i, label := range e.Labels {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, label)
		}
	}
	return buf.String()
}

// AssertionContext provides what state assertions need beyond the result.
type AssertionContext struct {
	Reconstructor *engine.Reconstructor
	Ctx           context.Context
}

// EvaluateAssertions runs every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertResultContains:
		return assertResultContains(result, a)
	case AssertResultCount:
		return assertResultCount(result, a)
	case AssertLabelOrder:
		return assertLabelOrder(result, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertStateAt:
		if actx == nil || actx.Reconstructor == nil {
			return fmt.Errorf("state_at assertion requires a reconstructor")
		}
		ctx := actx.Ctx
		if ctx == nil {
			ctx = context.Background()
		}
		return assertStateAt(ctx, actx.Reconstructor, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertResultContains checks that a solution at the label binds every
// variable of the expected row (subset match).
func assertResultContains(result *Result, a Assertion) error {
	rows, ok := result.Snapshots[a.Label]
	if !ok {
		return missingLabel(result, a)
	}
	for _, row := range rows {
		if matchRow(row, a.Row) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertResultContains,
		Expected: fmt.Sprintf("solution at %s binding %s", a.Label, formatRow(a.Row)),
		Actual:   fmt.Sprintf("solutions %s", formatRows(rows)),
		Labels:   result.Labels,
	}
}

// assertResultCount checks the exact number of solutions at the label.
func assertResultCount(result *Result, a Assertion) error {
	rows, ok := result.Snapshots[a.Label]
	if !ok {
		return missingLabel(result, a)
	}
	if len(rows) != a.Count {
		return &AssertionError{
			Type:     AssertResultCount,
			Expected: fmt.Sprintf("%d solutions at %s", a.Count, a.Label),
			Actual:   fmt.Sprintf("%d solutions %s", len(rows), formatRows(rows)),
			Labels:   result.Labels,
		}
	}
	return nil
}

// assertLabelOrder checks that the labels appear in the specified order.
// Labels don't need to be consecutive.
func assertLabelOrder(result *Result, a Assertion) error {
	positions := make(map[string]int, len(result.Labels))
	for i, label := range result.Labels {
		positions[label] = i + 1 // 1-indexed for readability
	}

	for _, label := range a.Labels {
		if positions[label] == 0 {
			return &AssertionError{
				Type:     AssertLabelOrder,
				Expected: fmt.Sprintf("all labels present: %v", a.Labels),
				Actual:   fmt.Sprintf("missing label: %s", label),
				Labels:   result.Labels,
			}
		}
	}
	for i := 1; i < len(a.Labels); i++ {
		prev, curr := a.Labels[i-1], a.Labels[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertLabelOrder,
				Expected: fmt.Sprintf("labels in order: %v", a.Labels),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Labels: result.Labels,
			}
		}
	}
	return nil
}

// assertFinalState checks the composite graph the query was evaluated on
// at the label.
func assertFinalState(result *Result, a Assertion) error {
	if result.composite == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("composite graph at %s", a.Label),
			Actual:   "query produced no snapshots",
		}
	}
	g, ok := result.composite.Graph(a.Label)
	if !ok {
		return missingLabel(result, a)
	}
	return checkGraph(AssertFinalState, a.Label, g, a)
}

// assertStateAt reconstructs the entity at the instant and checks its
// graph.
func assertStateAt(ctx context.Context, rec *engine.Reconstructor, a Assertion) error {
	at, err := time.Parse(time.RFC3339Nano, a.At)
	if err != nil {
		return fmt.Errorf("invalid instant %q: %w", a.At, err)
	}
	p, err := rec.StateAt(ctx, a.Entity, at)
	if err != nil {
		return &AssertionError{
			Type:     AssertStateAt,
			Expected: fmt.Sprintf("state of %s at %s", a.Entity, a.At),
			Actual:   fmt.Sprintf("reconstruction error: %v", err),
		}
	}
	if p.PreHistoryUnknown {
		return &AssertionError{
			Type:     AssertStateAt,
			Expected: fmt.Sprintf("state of %s at %s", a.Entity, a.At),
			Actual:   "state unknown: provenance does not reach this far back",
		}
	}
	return checkGraph(AssertStateAt, a.Entity+" at "+a.At, p.Graph, a)
}

func checkGraph(typ, where string, g *ir.Graph, a Assertion) error {
	present, _ := parseStatements(a.Quads)
	absent, _ := parseStatements(a.Absent)

	var missing, unexpected []string
	for _, q := range present {
		if !g.Contains(q) {
			missing = append(missing, q.String())
		}
	}
	for _, q := range absent {
		if g.Contains(q) {
			unexpected = append(unexpected, q.String())
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}

	var actual []string
	if len(missing) > 0 {
		actual = append(actual, fmt.Sprintf("missing %v", missing))
	}
	if len(unexpected) > 0 {
		actual = append(actual, fmt.Sprintf("unexpected %v", unexpected))
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("graph of %s holding %v without %v", where, a.Quads, a.Absent),
		Actual:   strings.Join(actual, "; ") + fmt.Sprintf(" in %v", ir.CanonicalGraph(g)),
	}
}

func missingLabel(result *Result, a Assertion) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("snapshot %s", a.Label),
		Actual:   "label not found",
		Labels:   result.Labels,
	}
}

// matchRow performs subset matching: every expected binding must be
// present with the same term.
func matchRow(actual, expected map[string]string) bool {
	for k, v := range expected {
		if actual[k] != v {
			return false
		}
	}
	return true
}

// formatRow renders a row with sorted variables for stable messages.
func formatRow(row map[string]string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("?%s=%s", k, row[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatRows(rows []Row) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = formatRow(r)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

