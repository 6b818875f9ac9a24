package delta

import (
	"strings"

	"github.com/roach88/timeagnostic/internal/ir"
)

// Format renders d as an update query that Parse decodes back to d: a
// DELETE DATA block followed by an INSERT DATA block, each grouping its
// quads by graph. Empty blocks are omitted; an empty delta renders as "".
func Format(d ir.Delta) string {
	var blocks []string
	if len(d.Deleted) > 0 {
		blocks = append(blocks, "DELETE DATA {\n"+formatBody(d.Deleted)+"}")
	}
	if len(d.Inserted) > 0 {
		blocks = append(blocks, "INSERT DATA {\n"+formatBody(d.Inserted)+"}")
	}
	return strings.Join(blocks, " ;\n")
}

func formatBody(quads []ir.Quad) string {
	qs := ir.DedupQuads(quads)

	var b strings.Builder
	var graph ir.Term
	open := false
	for _, q := range qs {
		if !open || q.Graph != graph {
			if open && !graph.IsZero() {
				b.WriteString("  }\n")
			}
			graph, open = q.Graph, true
			if !graph.IsZero() {
				b.WriteString("  GRAPH " + graph.String() + " {\n")
			}
		}
		indent := "  "
		if !graph.IsZero() {
			indent = "    "
		}
		b.WriteString(indent + q.Subject.String() + " " + q.Predicate.String() + " " + q.Object.String() + " .\n")
	}
	if open && !graph.IsZero() {
		b.WriteString("  }\n")
	}
	return b.String()
}
