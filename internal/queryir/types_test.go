package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/ir"
)

var (
	cites = Const(ir.IRI("http://purl.org/spar/cito/cites"))
	br1   = Const(ir.IRI("https://example.org/br/1"))
	g1    = Const(ir.IRI("https://example.org/g"))
)

func TestFlatten_DocumentOrder(t *testing.T) {
	where := Group{Elements: []Pattern{
		TriplePattern{Subject: br1, Predicate: cites, Object: Variable("cited")},
		Optional{Group: Group{Elements: []Pattern{
			TriplePattern{Subject: Variable("cited"), Predicate: cites, Object: Variable("x")},
			Optional{Group: Group{Elements: []Pattern{
				TriplePattern{Subject: Variable("x"), Predicate: cites, Object: Variable("y")},
			}}},
		}}},
		GraphGroup{Graph: g1, Group: Group{Elements: []Pattern{
			TriplePattern{Subject: Variable("y"), Predicate: cites, Object: Variable("z")},
		}}},
	}}

	got := Flatten(where)
	require.Len(t, got, 4)
	assert.Equal(t, "cited", got[0].Object.Var)
	assert.Equal(t, "x", got[1].Object.Var)
	assert.Equal(t, "y", got[2].Object.Var)
	assert.Equal(t, "z", got[3].Object.Var)
	assert.Equal(t, g1, got[3].Graph, "GRAPH block propagates to nested patterns")
	assert.True(t, got[0].Graph.IsZero())
}

func TestFlatten_DeepNesting(t *testing.T) {
	// Deeply nested OPTIONAL chains must not exhaust the goroutine stack.
	inner := Group{Elements: []Pattern{TriplePattern{Subject: br1, Predicate: cites, Object: Variable("v")}}}
	for i := 0; i < 100000; i++ {
		inner = Group{Elements: []Pattern{Optional{Group: inner}}}
	}
	got := Flatten(inner)
	require.Len(t, got, 1)
}

func TestProjection(t *testing.T) {
	where := Group{Elements: []Pattern{
		TriplePattern{Subject: Variable("s"), Predicate: cites, Object: Variable("o")},
		TriplePattern{Subject: Variable("o"), Predicate: Variable("p"), Object: br1},
	}}

	star := &SelectQuery{Where: where, Limit: NoLimit}
	assert.Equal(t, []string{"s", "o", "p"}, star.Projection())

	explicit := &SelectQuery{Vars: []string{"o"}, Where: where, Limit: NoLimit}
	assert.Equal(t, []string{"o"}, explicit.Projection())
}

func TestTriplePatternQuad(t *testing.T) {
	tp := TriplePattern{Subject: br1, Predicate: cites, Object: Variable("o")}
	q := tp.Quad()
	assert.Equal(t, br1.Term, q.Subject)
	assert.True(t, q.Object.IsZero())
	assert.True(t, q.Graph.IsZero())
	assert.Equal(t, "<https://example.org/br/1> <http://purl.org/spar/cito/cites> ?o", tp.String())
}
