package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/queryir"
)

func triple(s, p, o queryir.Node) queryir.TriplePattern {
	return queryir.TriplePattern{Subject: s, Predicate: p, Object: o}
}

func node(iri string) queryir.Node { return queryir.Const(ir.IRI(iri)) }

func variable(name string) queryir.Node { return queryir.Variable(name) }

// unresolved counts the (pattern, variable) pairs still waiting for a value.
func unresolved(rs *resolver) int {
	count := 0
	for _, p := range rs.patterns {
		for _, n := range []queryir.Node{p.Subject, p.Predicate, p.Object} {
			if n.IsVar() && !rs.resolved[n.Var] {
				count++
			}
		}
	}
	return count
}

// =============================================================================
// Fixpoint
// =============================================================================

func TestResolverIsMonotonic(t *testing.T) {
	patterns := []queryir.TriplePattern{
		triple(node(br1), node(cites), variable("x")),
		triple(variable("x"), node(cites), variable("y")),
		triple(variable("y"), node(title), variable("t")),
	}
	g := ir.NewGraph(
		link(br1, cites, br2),
		link(br2, cites, br3),
		ir.NewQuad(ir.IRI(br3), ir.IRI(title), ir.Literal("t"), ir.IRI(base+"br/")),
	)
	rs := newResolver(patterns)

	prev := unresolved(rs)
	require.Equal(t, 5, prev)
	rounds := 0
	for !rs.done() {
		_, solvable := rs.round([]*ir.Graph{g})
		require.True(t, solvable)
		rounds++

		cur := unresolved(rs)
		assert.Less(t, cur, prev, "round %d", rounds)
		prev = cur
	}

	assert.Equal(t, 3, rounds)
	assert.Equal(t, 0, unresolved(rs))
	assert.Equal(t, map[ir.Term]bool{ir.Literal("t"): true}, rs.values["t"])
}

func TestResolverRoundWithoutMatchesStillResolves(t *testing.T) {
	rs := newResolver([]queryir.TriplePattern{triple(node(br1), node(cites), variable("x"))})

	fresh, solvable := rs.round([]*ir.Graph{ir.EmptyGraph(), nil})
	assert.True(t, solvable)
	assert.Empty(t, fresh)
	assert.True(t, rs.done())

	_, solvable = rs.round([]*ir.Graph{ir.EmptyGraph()})
	assert.False(t, solvable)
}

// Without an anchor in subject position no chain can start, so complex
// queries never reach a resolution round.
func TestResolverComplexQueryHasNoSolvablePattern(t *testing.T) {
	rs := newResolver([]queryir.TriplePattern{
		triple(variable("citing"), node(cites), node(br1)),
		triple(variable("citing"), node(title), variable("t")),
	})

	fresh, solvable := rs.round([]*ir.Graph{ir.NewGraph(link(br2, cites, br1))})
	assert.False(t, solvable)
	assert.Nil(t, fresh)
	assert.False(t, rs.done())
}
