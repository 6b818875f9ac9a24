package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/ir"
)

func TestTermEncodingRoundTrip(t *testing.T) {
	terms := []ir.Term{
		{},
		ir.IRI(br1),
		ir.Blank("b0"),
		ir.Literal("line\nbreak \"quoted\""),
		ir.TypedLiteral("2021-05-07T09:59:15Z", xsdDateTime),
		ir.LangLiteral("citazioni", "it"),
	}
	for _, term := range terms {
		got, err := decodeTerm(encodeTerm(term))
		require.NoError(t, err, "term %s", term)
		assert.Equal(t, term, got)
	}
}

func TestDecodeTermRejectsGarbage(t *testing.T) {
	for _, s := range []string{"<unterminated", "<a> <b>", "?x"} {
		_, err := decodeTerm(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestGraphsEncodingRoundTrip(t *testing.T) {
	want := historyGraphs()

	data, err := marshalGraphs(want)
	require.NoError(t, err)
	got, err := unmarshalGraphs(data)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]))
	}
}
