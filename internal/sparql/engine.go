package sparql

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/queryir"
)

// DefaultCacheSize bounds the number of parsed queries kept by an Engine.
const DefaultCacheSize = 256

// Engine parses and evaluates SELECT queries over in-memory graphs.
// Parsed queries are cached by text. An Engine is safe for concurrent use.
type Engine struct {
	cache     *lru.Cache[string, *queryir.SelectQuery]
	cacheSize int
	coerce    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLiteralCoercion makes literal constants in patterns match data
// literals with the same value rather than the same lexical form, so
// "1"^^xsd:integer matches "01"^^xsd:int. Off by default.
func WithLiteralCoercion(enabled bool) Option {
	return func(e *Engine) {
		e.coerce = enabled
	}
}

// WithCacheSize sets the parsed-query cache capacity.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(e)
	}
	cache, err := lru.New[string, *queryir.SelectQuery](e.cacheSize)
	if err != nil {
		panic(fmt.Sprintf("sparql: create query cache: %v", err))
	}
	e.cache = cache
	return e
}

// Prepare parses query, reusing a cached parse when available.
func (e *Engine) Prepare(query string) (*queryir.SelectQuery, error) {
	if q, ok := e.cache.Get(query); ok {
		return q, nil
	}
	q, err := Parse(query)
	if err != nil {
		return nil, err
	}
	e.cache.Add(query, q)
	return q, nil
}

// IsSelect reports whether query is a SELECT query. It fails only when the
// query form cannot be determined.
func (e *Engine) IsSelect(query string) (bool, error) {
	form, err := QueryForm(query)
	if err != nil {
		return false, err
	}
	return form == "SELECT", nil
}

// ExtractTriplePatterns returns the flattened triple patterns of query and
// its projected variables.
func (e *Engine) ExtractTriplePatterns(query string) ([]queryir.TriplePattern, []string, error) {
	q, err := e.Prepare(query)
	if err != nil {
		return nil, nil, err
	}
	return queryir.Flatten(q.Where), q.Projection(), nil
}

// Evaluate runs query against g. Tuples follow the projected variables,
// are distinct and sorted.
func (e *Engine) Evaluate(ctx context.Context, g *ir.Graph, query string) ([]ir.Tuple, error) {
	q, err := e.Prepare(query)
	if err != nil {
		return nil, err
	}
	return e.EvaluateQuery(ctx, g, q)
}

// EvaluateQuery runs a parsed query against g.
func (e *Engine) EvaluateQuery(ctx context.Context, g *ir.Graph, q *queryir.SelectQuery) ([]ir.Tuple, error) {
	if g == nil {
		g = ir.EmptyGraph()
	}
	ev := &evaluator{g: g, coerce: e.coerce}
	sols, err := ev.solve(ctx, q.Where)
	if err != nil {
		return nil, err
	}
	return project(sols, q.Projection(), q.Limit), nil
}
