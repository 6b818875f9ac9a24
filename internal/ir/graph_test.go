package ir

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	exS = IRI("http://ex/s")
	exP = IRI("http://ex/p")
	exG = IRI("http://ex/g")
)

func lit(v string) Quad {
	return NewQuad(exS, exP, Literal(v), exG)
}

// ============================================================================
// Apply / overlay semantics
// ============================================================================

func TestGraphApplyInsertDelete(t *testing.T) {
	base := NewGraph(lit("a"), lit("b"))
	next := base.Apply(Delta{Inserted: []Quad{lit("c")}, Deleted: []Quad{lit("a")}})

	assert.Equal(t, []Quad{lit("b"), lit("c")}, next.Quads())
	assert.Equal(t, []Quad{lit("a"), lit("b")}, base.Quads(), "parent must be untouched")
	assert.True(t, next.Contains(lit("c")))
	assert.False(t, next.Contains(lit("a")))
}

func TestGraphApplyInvertRoundTrip(t *testing.T) {
	g := NewGraph(lit("a"), lit("b"))
	d := Delta{Inserted: []Quad{lit("c")}, Deleted: []Quad{lit("a")}}

	back := g.Apply(d).Apply(d.Inverted())
	assert.True(t, g.Equal(back))
}

func TestGraphApplySameQuadBothSets(t *testing.T) {
	g := NewGraph()
	next := g.Apply(Delta{Inserted: []Quad{lit("a")}, Deleted: []Quad{lit("a")}})
	assert.True(t, next.Contains(lit("a")), "(g − del) ∪ ins keeps inserted quads")
}

func TestGraphApplyFlattensDeepChains(t *testing.T) {
	g := NewGraph()
	for i := 0; i < MaxOverlayDepth*3; i++ {
		g = g.Apply(Delta{Inserted: []Quad{lit(fmt.Sprintf("v%03d", i))}})
		assert.LessOrEqual(t, g.depth, MaxOverlayDepth)
	}
	assert.Equal(t, MaxOverlayDepth*3, g.Len())
}

func TestGraphMatch(t *testing.T) {
	other := NewQuad(IRI("http://ex/o"), exP, Literal("x"), Term{})
	g := NewGraph(lit("a"), lit("b"), other)

	assert.Len(t, g.Match(Quad{Subject: exS}), 2)
	assert.Len(t, g.Match(Quad{Predicate: exP}), 3)
	assert.Equal(t, []Quad{other}, g.Match(Quad{Object: Literal("x")}))
	assert.Empty(t, g.Match(Quad{Graph: IRI("http://ex/none")}))
}

func TestGraphConcurrentReaders(t *testing.T) {
	g := NewGraph(lit("a")).Apply(Delta{Inserted: []Quad{lit("b")}})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 2, g.Len())
		}()
	}
	wg.Wait()
}

func TestUnion(t *testing.T) {
	u := Union(NewGraph(lit("a")), nil, NewGraph(lit("a"), lit("b")))
	assert.Equal(t, []Quad{lit("a"), lit("b")}, u.Quads())
}

func TestNTriplesRendering(t *testing.T) {
	g := NewGraph(
		Triple(exS, exP, LangLiteral("ciao \"mondo\"", "IT")),
		NewQuad(exS, exP, Blank("b0"), exG),
	)
	assert.Equal(t, []string{
		`<http://ex/s> <http://ex/p> "ciao \"mondo\""@it .`,
		`<http://ex/s> <http://ex/p> _:b0 <http://ex/g> .`,
	}, g.NTriples())
}

func TestTypedLiteralFoldsXSDString(t *testing.T) {
	assert.Equal(t, Literal("a"), TypedLiteral("a", XSDString))
}

// ============================================================================
// History helpers
// ============================================================================

func TestEntityHistoryLatest(t *testing.T) {
	t1 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	h := &EntityHistory{States: []State{
		{Time: t1, Graph: NewGraph(lit("a"))},
		{Time: t2, Graph: NewGraph(lit("b"))},
	}}

	_, ok := h.Latest(t1.Add(-time.Second))
	assert.False(t, ok)

	s, ok := h.Latest(t1)
	require.True(t, ok)
	assert.Equal(t, t1, s.Time)

	s, ok = h.Latest(t1.Add(30 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, t1, s.Time)

	s, ok = h.Latest(t2.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, t2, s.Time)
}

func TestCompositeLabels(t *testing.T) {
	t1 := time.Date(2021, 5, 31, 18, 19, 47, 500, time.FixedZone("CEST", 2*3600))
	c := &Composite{Moments: []Moment{{Time: t1, Graph: NewGraph()}}, Now: NewGraph()}

	assert.Equal(t, []string{"2021-05-31T16:19:47.0000005Z", NowLabel}, c.Labels())
	_, ok := c.Graph("2021-05-31T16:19:47.0000005Z")
	assert.True(t, ok)
	_, ok = c.Graph("2020-01-01T00:00:00Z")
	assert.False(t, ok)
}
