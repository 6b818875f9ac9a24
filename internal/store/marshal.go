package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/rdfsyntax"
)

// encodeTerm renders a term in N-Triples syntax for a TEXT column.
// The default graph encodes as "".
func encodeTerm(t ir.Term) string {
	return t.String()
}

// decodeTerm parses a term stored by encodeTerm.
func decodeTerm(s string) (ir.Term, error) {
	if s == "" {
		return ir.Term{}, nil
	}
	toks, err := rdfsyntax.Tokenize(s)
	if err != nil {
		return ir.Term{}, fmt.Errorf("decode term %q: %w", s, err)
	}
	c := rdfsyntax.NewCursor(toks)
	t, err := c.ReadTerm(true)
	if err != nil {
		return ir.Term{}, fmt.Errorf("decode term %q: %w", s, err)
	}
	if !c.AtEOF() {
		return ir.Term{}, fmt.Errorf("decode term %q: trailing input", s)
	}
	return t, nil
}

// marshalGraphs converts graphs to canonical JSON: one array of sorted
// N-Quads statements per graph.
func marshalGraphs(graphs []*ir.Graph) ([]byte, error) {
	out := make([]any, len(graphs))
	for i, g := range graphs {
		out[i] = g.NTriples()
	}
	data, err := ir.MarshalCanonical(out)
	if err != nil {
		return nil, fmt.Errorf("marshal graphs: %w", err)
	}
	return data, nil
}

// unmarshalGraphs parses JSON produced by marshalGraphs.
func unmarshalGraphs(data []byte) ([]*ir.Graph, error) {
	var raw [][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal graphs: %w", err)
	}
	out := make([]*ir.Graph, len(raw))
	for i, lines := range raw {
		var quads []ir.Quad
		for _, l := range lines {
			qs, err := rdfsyntax.ParseNQuads(l)
			if err != nil {
				return nil, fmt.Errorf("unmarshal graphs: %w", err)
			}
			quads = append(quads, qs...)
		}
		out[i] = ir.NewGraph(quads...)
	}
	return out, nil
}
