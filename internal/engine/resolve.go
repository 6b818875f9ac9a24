package engine

import (
	"slices"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/queryir"
)

// resolver tracks which variables of a query have been bound so far and to
// which values, across every moment of the composite.
//
// A pattern is solvable when its object is the only unresolved variable
// and its subject and predicate are concrete or were resolved in an
// earlier round. Values only ever grow, so resolution is monotonic.
type resolver struct {
	patterns []queryir.TriplePattern
	resolved map[string]bool
	values   map[string]map[ir.Term]bool
}

func newResolver(patterns []queryir.TriplePattern) *resolver {
	return &resolver{
		patterns: patterns,
		resolved: make(map[string]bool),
		values:   make(map[string]map[ir.Term]bool),
	}
}

func (rs *resolver) ready(n queryir.Node) bool {
	return !n.IsVar() || rs.resolved[n.Var]
}

// solvable returns the patterns that can be evaluated this round.
func (rs *resolver) solvable() []queryir.TriplePattern {
	var out []queryir.TriplePattern
	for _, tp := range rs.patterns {
		if !tp.Object.IsVar() || rs.resolved[tp.Object.Var] {
			continue
		}
		if tp.Subject.Var == tp.Object.Var || tp.Predicate.Var == tp.Object.Var {
			continue
		}
		if rs.ready(tp.Subject) && rs.ready(tp.Predicate) {
			out = append(out, tp)
		}
	}
	return out
}

// candidates returns the terms a pattern position can take.
func (rs *resolver) candidates(n queryir.Node) []ir.Term {
	if !n.IsVar() {
		return []ir.Term{n.Term}
	}
	out := make([]ir.Term, 0, len(rs.values[n.Var]))
	for t := range rs.values[n.Var] {
		out = append(out, t)
	}
	slices.SortFunc(out, ir.CompareTerms)
	return out
}

// round evaluates every solvable pattern against graphs and marks the
// object variables resolved. It returns the newly bound values and whether
// any pattern was solvable at all.
func (rs *resolver) round(graphs []*ir.Graph) ([]ir.Term, bool) {
	solvable := rs.solvable()
	if len(solvable) == 0 {
		return nil, false
	}

	var fresh []ir.Term
	for _, tp := range solvable {
		subjects := rs.candidates(tp.Subject)
		predicates := rs.candidates(tp.Predicate)
		graph := ir.Term{}
		if !tp.Graph.IsVar() {
			graph = tp.Graph.Term
		}

		bound := rs.values[tp.Object.Var]
		if bound == nil {
			bound = make(map[ir.Term]bool)
			rs.values[tp.Object.Var] = bound
		}
		for _, g := range graphs {
			if g == nil {
				continue
			}
			for _, s := range subjects {
				for _, p := range predicates {
					for _, q := range g.Match(ir.Quad{Subject: s, Predicate: p, Graph: graph}) {
						if !bound[q.Object] {
							bound[q.Object] = true
							fresh = append(fresh, q.Object)
						}
					}
				}
			}
		}
	}
	for _, tp := range solvable {
		rs.resolved[tp.Object.Var] = true
	}

	slices.SortFunc(fresh, ir.CompareTerms)
	return fresh, true
}

// done reports whether every variable in subject, predicate or object
// position is resolved.
func (rs *resolver) done() bool {
	for _, tp := range rs.patterns {
		for _, n := range []queryir.Node{tp.Subject, tp.Predicate, tp.Object} {
			if n.IsVar() && !rs.resolved[n.Var] {
				return false
			}
		}
	}
	return true
}

// compositeGraphs lists the graphs of every moment followed by now.
func compositeGraphs(c *ir.Composite) []*ir.Graph {
	out := make([]*ir.Graph, 0, len(c.Moments)+1)
	for _, m := range c.Moments {
		out = append(out, m.Graph)
	}
	return append(out, c.Now)
}
