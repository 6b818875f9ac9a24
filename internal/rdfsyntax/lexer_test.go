package rdfsyntax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/ir"
)

// ============================================================================
// Tokenize
// ============================================================================

func TestTokenizeKinds(t *testing.T) {
	toks, err := Tokenize(`PREFIX ex: <http://ex/> SELECT ?x WHERE { ex:a ex:b "v"@en ; a "1"^^<http://ex/dt> , _:b1 , 42 . }`)
	require.NoError(t, err)

	kinds := make([]Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []Kind{
		Word, PName, IRIRef, Word, Var, Word, Punct,
		PName, PName, String, LangTag, Punct,
		Word, String, DatatypeMark, IRIRef, Punct, BlankNode, Punct, Number, Punct, Punct,
		EOF,
	}, kinds)
}

func TestTokenizeTrailingDots(t *testing.T) {
	toks, err := Tokenize(`?x ex:p ex:o. _:b.`)
	require.NoError(t, err)
	require.Len(t, toks, 7)
	assert.Equal(t, "x", toks[0].Value)
	assert.Equal(t, "ex:o", toks[2].Value)
	assert.True(t, toks[3].Is("."))
	assert.Equal(t, "b", toks[4].Value)
	assert.True(t, toks[5].Is("."))
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := Tokenize(`"a\"b\\c\né" '''multi
line'''`)
	require.NoError(t, err)
	assert.Equal(t, "a\"b\\c\né", toks[0].Value)
	assert.Equal(t, "multi\nline", toks[1].Value)
}

func TestTokenizeComments(t *testing.T) {
	toks, err := Tokenize("# header\n<http://ex/a> # trailing\n")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, "http://ex/a", toks[0].Value)
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unterminated IRI", `<http://ex/a`, "unterminated IRI"},
		{"space in IRI", `<http://ex/ a>`, "invalid character"},
		{"unterminated string", `"abc`, "unterminated string"},
		{"bad escape", `"\q"`, "invalid escape"},
		{"stray caret", `"a"^<x>`, "expected '^^'"},
		{"unexpected", `<a> ~ <b>`, "unexpected character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			require.Error(t, err)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, se.Message, tt.want)
		})
	}
}

func TestTokenizeLargeInputIsFlat(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20000; i++ {
		b.WriteString("{ ")
	}
	toks, err := Tokenize(b.String())
	require.NoError(t, err)
	assert.Len(t, toks, 20001)
}

// ============================================================================
// N-Quads
// ============================================================================

func TestParseNQuads(t *testing.T) {
	src := `<http://ex/s> <http://ex/p> "o"@en <http://ex/g> .
<http://ex/s> <http://ex/p> _:b0 .
_:b0 <http://ex/q> "5"^^<http://www.w3.org/2001/XMLSchema#integer> .
`
	quads, err := ParseNQuads(src)
	require.NoError(t, err)
	require.Len(t, quads, 3)

	assert.Equal(t, ir.NewQuad(ir.IRI("http://ex/s"), ir.IRI("http://ex/p"), ir.LangLiteral("o", "en"), ir.IRI("http://ex/g")), quads[0])
	assert.True(t, quads[1].Graph.IsZero())
	assert.Equal(t, ir.TypedLiteral("5", "http://www.w3.org/2001/XMLSchema#integer"), quads[2].Object)
}

func TestParseNQuadsRejectsLiteralSubject(t *testing.T) {
	_, err := ParseNQuads(`"s" <http://ex/p> <http://ex/o> .`)
	require.Error(t, err)
}

func TestFormatNQuadsRoundTrip(t *testing.T) {
	quads := []ir.Quad{
		ir.NewQuad(ir.IRI("http://ex/s"), ir.IRI("http://ex/p"), ir.Literal("tab\there \"q\""), ir.IRI("http://ex/g")),
		ir.Triple(ir.IRI("http://ex/s"), ir.IRI("http://ex/p"), ir.IRI("http://ex/o")),
	}
	doc := FormatNQuads(append(quads, quads[0]))

	parsed, err := ParseNQuads(doc)
	require.NoError(t, err)
	assert.ElementsMatch(t, quads, parsed)
}
