package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/metrics"
	"github.com/roach88/timeagnostic/internal/queryir"
)

// QueryEngine parses and evaluates queries over a single graph. The
// sparql package provides the implementation used by the CLI.
type QueryEngine interface {
	IsSelect(query string) (bool, error)
	ExtractTriplePatterns(query string) ([]queryir.TriplePattern, []string, error)
	Evaluate(ctx context.Context, g *ir.Graph, query string) ([]ir.Tuple, error)
}

// Engine answers time-agnostic queries: it evaluates a query against every
// recorded moment of the entities the query reaches, and against the
// present.
//
// Execution goes through fixed stages:
//
//	Validate → ExtractAnchors → Reconstruct → Align → Resolve → Evaluate
//
// Resolve loops back to Reconstruct and Align while it keeps binding new
// values. Failures of single entities become warnings on the result;
// invalid queries fail before any source is read.
//
// Thread-safety: an Engine is safe for concurrent use. Every execution
// owns its histories.
type Engine struct {
	rec       *Reconstructor
	qe        QueryEngine
	runIDs    RunIDGenerator
	maxRounds int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRounds bounds variable resolution.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRounds = n
		}
	}
}

// WithRunIDGenerator sets the run ID source.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine.
func New(rec *Reconstructor, qe QueryEngine, opts ...Option) *Engine {
	e := &Engine{
		rec:       rec,
		qe:        qe,
		runIDs:    UUIDv7Generator{},
		maxRounds: DefaultMaxRounds,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one time-agnostic query.
type Result struct {
	RunID string
	// Vars are the projected variables, in tuple order.
	Vars []string
	// Labels are the snapshot time labels, ascending, followed by "now".
	Labels []string
	// Snapshots maps every label to its distinct, sorted result tuples.
	Snapshots map[string][]ir.Tuple
	Warnings  []string
	Rounds    int
	// Entities lists the reconstructed entities.
	Entities  []string
	Composite *ir.Composite
}

// Execute runs query across time.
func (e *Engine) Execute(ctx context.Context, query string) (*Result, error) {
	res, err := e.execute(ctx, query)
	rounds, warnings := 0, 0
	if res != nil {
		rounds, warnings = res.Rounds, len(res.Warnings)
	}
	code := metrics.OutcomeOK
	if err != nil {
		code = metrics.OutcomeError
		if c := CodeOf(err); c != "" {
			code = string(c)
		}
	}
	e.metrics.ObserveQuery(code, rounds, warnings)
	return res, err
}

func (e *Engine) execute(ctx context.Context, query string) (*Result, error) {
	ok, err := e.qe.IsSelect(query)
	if err != nil {
		return nil, &UnsupportedQueryError{Reason: "cannot parse query", Err: err}
	}
	if !ok {
		return nil, &UnsupportedQueryError{Reason: "only SELECT queries are supported"}
	}
	patterns, vars, err := e.qe.ExtractTriplePatterns(query)
	if err != nil {
		return nil, &UnsupportedQueryError{Reason: "unsupported query", Err: err}
	}
	anchors := ExtractAnchors(patterns)
	if len(anchors.Terms) == 0 {
		return nil, &NoAnchorError{Query: query}
	}

	runID := e.runIDs.Generate()
	log := e.logger.With("run_id", runID)
	log.Info("executing time-agnostic query",
		"anchors", len(anchors.Terms),
		"complex", anchors.Complex,
		"patterns", len(patterns),
	)

	res := &Result{RunID: runID, Vars: vars}
	warn := func(errs []error) {
		for _, err := range errs {
			log.Warn("entity skipped", "error", err)
			res.Warnings = append(res.Warnings, err.Error())
		}
	}

	visited := NewVisitedSet()
	histories := make(ir.Histories)

	entities, errs := e.rec.anchorEntities(ctx, anchors.Terms)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	warn(errs)
	hs, failures, err := e.rec.gather(ctx, entities, anchors.Complex, visited)
	if err != nil {
		return nil, err
	}
	warn(failures)
	histories.Merge(hs)
	composite := Align(histories)

	rs := newResolver(patterns)
	quota := NewRoundQuota(e.maxRounds)
	for !rs.done() {
		if err := quota.Check(runID); err != nil {
			warn([]error{err})
			break
		}
		fresh, solvable := rs.round(compositeGraphs(composite))
		if !solvable {
			break
		}
		res.Rounds = quota.Current()
		if len(fresh) == 0 {
			log.Debug("resolution round bound nothing new", "round", res.Rounds)
			break
		}

		var next []string
		for _, t := range fresh {
			if t.IsIRI() && !visited.Contains(t.Value) {
				next = append(next, t.Value)
			}
		}
		log.Debug("resolution round", "round", res.Rounds, "bound", len(fresh), "entities", len(next))
		if len(next) == 0 {
			continue
		}
		hs, failures, err := e.rec.gather(ctx, next, anchors.Complex, visited)
		if err != nil {
			return nil, err
		}
		warn(failures)
		histories.Merge(hs)
		composite = Align(histories)
	}

	snapshots, err := e.evaluate(ctx, composite, query)
	if err != nil {
		return nil, err
	}

	res.Labels = composite.Labels()
	res.Snapshots = snapshots
	res.Entities = histories.Entities()
	res.Composite = composite

	log.Info("time-agnostic query finished",
		"entities", len(res.Entities),
		"moments", len(composite.Moments),
		"rounds", res.Rounds,
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// evaluate runs the unmodified query on every moment and on now.
func (e *Engine) evaluate(ctx context.Context, c *ir.Composite, query string) (map[string][]ir.Tuple, error) {
	labels := c.Labels()
	graphs := compositeGraphs(c)

	var mu sync.Mutex
	out := make(map[string][]ir.Tuple, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.rec.workers)
	for i, label := range labels {
		graph := graphs[i]
		g.Go(func() error {
			tuples, err := e.qe.Evaluate(gctx, graph, query)
			if err != nil {
				return fmt.Errorf("evaluate query at %s: %w", label, err)
			}
			tuples = normalizeTuples(tuples)
			mu.Lock()
			out[label] = tuples
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}

// normalizeTuples sorts and deduplicates tuples. The result is never nil.
func normalizeTuples(tuples []ir.Tuple) []ir.Tuple {
	out := make([]ir.Tuple, 0, len(tuples))
	seen := make(map[string]bool, len(tuples))
	for _, t := range tuples {
		k := t.Key()
		if !seen[k] {
			seen[k] = true
			out = append(out, t)
		}
	}
	slices.SortFunc(out, ir.CompareTuples)
	return out
}
