package store

import (
	"fmt"
	"io"

	"github.com/piprate/json-gold/ld"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/rdfsyntax"
)

// WriteJSONLD writes quads as an expanded JSON-LD document in canonical
// JSON, so equal datasets produce identical files.
func WriteJSONLD(w io.Writer, quads []ir.Quad) error {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.Format = "application/n-quads"

	doc, err := proc.FromRDF(rdfsyntax.FormatNQuads(quads), opts)
	if err != nil {
		return fmt.Errorf("convert RDF to JSON-LD: %w", err)
	}

	data, err := ir.MarshalCanonical(normalizeJSON(doc))
	if err != nil {
		return fmt.Errorf("encode JSON-LD: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write JSON-LD: %w", err)
	}
	return nil
}

// normalizeJSON rewrites the values json-gold produces into the types
// canonical JSON accepts. Native numbers and nulls only appear with
// useNativeTypes, which is off; they are rendered as strings regardless.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeJSON(e)
		}
		return out
	case string, bool, int, int64:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
