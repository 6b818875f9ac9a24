// Package source provides the graph stores the engine reads from.
//
// A GraphStore answers quad pattern lookups over either the present state
// of the dataset or the provenance records. Implementations:
//   - Memory: an indexed in-memory quad set, filled from N-Quads or JSON-LD files
//   - Endpoint: a remote SPARQL 1.1 query endpoint
//   - Multi: the union of several stores
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/timeagnostic/internal/ir"
)

// GraphStore answers quad pattern lookups. Zero terms in the pattern are
// wildcards; a zero graph matches every graph.
//
// Implementations must be safe for concurrent use.
type GraphStore interface {
	Match(ctx context.Context, pattern ir.Quad) ([]ir.Quad, error)
}

// TransportError reports a failure to reach or read a store. Transport
// errors are transient from the engine's point of view.
type TransportError struct {
	Source    string
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s (%s): %v", e.Source, e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports that the failed operation may succeed if repeated.
func (e *TransportError) Retryable() bool {
	return true
}

// IsTransportError returns true if the error is a TransportError.
// Uses errors.As to handle wrapped errors.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Multi is the union of several stores. Results are deduplicated and
// returned in canonical order.
type Multi []GraphStore

// Match queries every store in order and merges the answers.
func (m Multi) Match(ctx context.Context, pattern ir.Quad) ([]ir.Quad, error) {
	var all []ir.Quad
	for _, st := range m {
		qs, err := st.Match(ctx, pattern)
		if err != nil {
			return nil, err
		}
		all = append(all, qs...)
	}
	return ir.DedupQuads(all), nil
}

// Describe returns a short human-readable description of a store.
func Describe(st GraphStore) string {
	switch s := st.(type) {
	case *Memory:
		return fmt.Sprintf("memory(%d quads)", s.Len())
	case *Endpoint:
		return "endpoint(" + s.url + ")"
	case Multi:
		parts := make([]string, len(s))
		for i, sub := range s {
			parts[i] = Describe(sub)
		}
		return "multi[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%T", st)
	}
}
