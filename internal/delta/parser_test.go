package delta

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/ir"
)

const (
	br1   = "https://github.com/arcangelo7/time_agnostic/br/1"
	title = "http://purl.org/dc/terms/title"
	graph = "https://github.com/arcangelo7/time_agnostic/br/"
)

func titleQuad(v string) ir.Quad {
	return ir.NewQuad(ir.IRI(br1), ir.IRI(title), ir.Literal(v), ir.IRI(graph))
}

// ============================================================================
// Parse
// ============================================================================

func TestParseDeleteAndInsert(t *testing.T) {
	text := fmt.Sprintf(`DELETE DATA { GRAPH <%s> { <%s> <%s> "old" . } } ;
INSERT DATA { GRAPH <%s> { <%s> <%s> "new" . } }`, graph, br1, title, graph, br1, title)

	d, err := NewParser().Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []ir.Quad{titleQuad("new")}, d.Inserted)
	assert.Equal(t, []ir.Quad{titleQuad("old")}, d.Deleted)
}

func TestParseInsertOnly(t *testing.T) {
	text := fmt.Sprintf(`INSERT DATA { GRAPH <%s> { <%s> <%s> "a" . <%s> <%s> "b" } }`, graph, br1, title, br1, title)

	d, err := NewParser().Parse(text)
	require.NoError(t, err)
	assert.Len(t, d.Inserted, 2)
	assert.Empty(t, d.Deleted)
}

func TestParseDefaultGraphAndTypedLiterals(t *testing.T) {
	text := `INSERT DATA { <http://ex/s> <http://ex/p> "1985-01-01"^^<http://www.w3.org/2001/XMLSchema#gYear> . <http://ex/s> <http://ex/q> "t"@en . }`

	d, err := NewParser().Parse(text)
	require.NoError(t, err)
	require.Len(t, d.Inserted, 2)
	for _, q := range d.Inserted {
		assert.True(t, q.Graph.IsZero())
	}
	assert.Contains(t, d.Inserted, ir.Triple(ir.IRI("http://ex/s"), ir.IRI("http://ex/p"),
		ir.TypedLiteral("1985-01-01", "http://www.w3.org/2001/XMLSchema#gYear")),
		"lexical forms are kept as written")
}

func TestParseDeduplicates(t *testing.T) {
	text := fmt.Sprintf(`INSERT DATA { GRAPH <%s> { <%s> <%s> "a" . <%s> <%s> "a" . } }`, graph, br1, title, br1, title)

	d, err := NewParser().Parse(text)
	require.NoError(t, err)
	assert.Len(t, d.Inserted, 1)
}

func TestParseMultipleGraphGroups(t *testing.T) {
	text := `INSERT DATA { GRAPH <http://ex/g1> { <http://ex/s> <http://ex/p> "a" . } GRAPH <http://ex/g2> { <http://ex/s> <http://ex/p> "a" . } }`

	d, err := NewParser().Parse(text)
	require.NoError(t, err)
	require.Len(t, d.Inserted, 2)
	assert.Equal(t, ir.IRI("http://ex/g1"), d.Inserted[0].Graph)
	assert.Equal(t, ir.IRI("http://ex/g2"), d.Inserted[1].Graph)
}

func TestParseStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", "no INSERT DATA or DELETE DATA block"},
		{"no block", "SELECT ?x WHERE { ?x ?p ?o }", "expected INSERT DATA or DELETE DATA"},
		{"missing DATA", "INSERT { <a> <b> <c> }", "expected DATA keyword"},
		{"unterminated", "INSERT DATA { <http://ex/a> <http://ex/b> <http://ex/c> .", "unterminated DATA block"},
		{"bad token", "INSERT DATA { <http://ex/a", "cannot tokenize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(tt.text)
			require.Error(t, err)
			assert.True(t, IsMalformedDelta(err))
			assert.Contains(t, err.Error(), tt.want)

			var me *MalformedDeltaError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, -1, me.Statement)
		})
	}
}

// ============================================================================
// Batching
// ============================================================================

func bigInsert(n int, badAt int) string {
	var b strings.Builder
	b.WriteString("INSERT DATA { GRAPH <http://ex/g> { ")
	for i := 0; i < n; i++ {
		if i == badAt {
			b.WriteString(`"literal-subject" <http://ex/p> "x" . `)
			continue
		}
		fmt.Fprintf(&b, `<http://ex/s> <http://ex/p> "v%04d" . `, i)
	}
	b.WriteString("} }")
	return b.String()
}

func TestParseBatchBoundariesDoNotChangeResult(t *testing.T) {
	text := bigInsert(250, -1)

	small, err := NewParser(WithBatchSize(7)).Parse(text)
	require.NoError(t, err)
	large, err := NewParser(WithBatchSize(1000)).Parse(text)
	require.NoError(t, err)
	def, err := NewParser().Parse(text)
	require.NoError(t, err)

	assert.Len(t, def.Inserted, 250)
	assert.Equal(t, large, small)
	assert.Equal(t, large, def)
}

func TestParseRetryPinpointsStatement(t *testing.T) {
	text := bigInsert(200, 137)

	_, err := NewParser().ParseSnapshot("https://ex/br/1/prov/se/3", text)
	require.Error(t, err)

	var me *MalformedDeltaError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 137, me.Statement)
	assert.Equal(t, "https://ex/br/1/prov/se/3", me.Snapshot)
	assert.Contains(t, err.Error(), "snapshot https://ex/br/1/prov/se/3")
}

func TestParseRetryStopsAtMinBatchSize(t *testing.T) {
	text := bigInsert(200, 137)

	_, err := NewParser(WithBatchSize(90), WithMinBatchSize(10)).Parse(text)
	var me *MalformedDeltaError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 137, me.Statement, "the failing statement index is exact within the last batch")
}

func TestNewParserClampsMinBatch(t *testing.T) {
	p := NewParser(WithBatchSize(4), WithMinBatchSize(10), WithBatchSize(0))
	assert.Equal(t, 4, p.BatchSize())
	assert.Equal(t, 4, p.minBatchSize)
}

// ============================================================================
// Invert / Apply
// ============================================================================

func TestInvertApplyRoundTrip(t *testing.T) {
	g := ir.NewGraph(titleQuad("old"), titleQuad("keep"))
	d := ir.Delta{Inserted: []ir.Quad{titleQuad("new")}, Deleted: []ir.Quad{titleQuad("old")}}

	after := Apply(g, d)
	assert.True(t, after.Contains(titleQuad("new")))
	assert.False(t, after.Contains(titleQuad("old")))

	back := Apply(after, Invert(d))
	assert.True(t, g.Equal(back))
}

func TestInvertIsInvolution(t *testing.T) {
	d := ir.Delta{Inserted: []ir.Quad{titleQuad("a")}, Deleted: []ir.Quad{titleQuad("b")}}
	assert.Equal(t, d, Invert(Invert(d)))
}

// ============================================================================
// Cache
// ============================================================================

func TestCacheHitsAndMisses(t *testing.T) {
	c, err := NewCache(NewParser(), 8)
	require.NoError(t, err)

	text := bigInsert(3, -1)
	d1, err := c.ParseSnapshot("s1", text)
	require.NoError(t, err)
	d2, err := c.ParseSnapshot("s2", text)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	c, err := NewCache(NewParser(), 8)
	require.NoError(t, err)

	_, err = c.ParseSnapshot("s1", "garbage")
	require.Error(t, err)
	_, err = c.ParseSnapshot("s1", "garbage")
	require.Error(t, err)

	hits, misses := c.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(2), misses)
}

// ============================================================================
// Format
// ============================================================================

func TestFormatRoundTrip(t *testing.T) {
	d := ir.Delta{
		Inserted: []ir.Quad{
			titleQuad("new"),
			ir.Triple(ir.IRI(br1), ir.IRI("http://ex/n"), ir.TypedLiteral("3", "http://www.w3.org/2001/XMLSchema#integer")),
		},
		Deleted: []ir.Quad{titleQuad("old \"quoted\"")},
	}

	text := Format(d)
	assert.True(t, strings.HasPrefix(text, "DELETE DATA {"), text)
	assert.Contains(t, text, "INSERT DATA {")

	back, err := NewParser().Parse(text)
	require.NoError(t, err)
	assert.ElementsMatch(t, d.Inserted, back.Inserted)
	assert.ElementsMatch(t, d.Deleted, back.Deleted)
}

func TestFormatOmitsEmptyBlocks(t *testing.T) {
	assert.Empty(t, Format(ir.Delta{}))

	text := Format(ir.Delta{Inserted: []ir.Quad{titleQuad("a")}})
	assert.NotContains(t, text, "DELETE")
	assert.Equal(t, 1, strings.Count(text, "GRAPH"))
}
