package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/timeagnostic/internal/delta"
	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/metrics"
	"github.com/roach88/timeagnostic/internal/prov"
	"github.com/roach88/timeagnostic/internal/source"
)

// DefaultWorkers is the default size of the reconstruction worker pool.
const DefaultWorkers = 4

// HistoryCache persists the states of reconstructed histories between runs.
// Keys change whenever an entity gains a snapshot or its present state
// changes, so entries never need invalidation. Implementations are
// best-effort: the Reconstructor logs and ignores their errors.
type HistoryCache interface {
	// Load returns the graphs of the newest states, oldest first.
	Load(ctx context.Context, key string) ([]*ir.Graph, bool, error)
	Store(ctx context.Context, key string, graphs []*ir.Graph) error
}

// Reconstructor rebuilds entity histories from the present state of the
// dataset and the deltas recorded in provenance.
//
// Thread-safety: a Reconstructor is safe for concurrent use.
type Reconstructor struct {
	dataset    source.GraphStore
	provenance source.GraphStore
	deltas     *delta.Cache
	cache      HistoryCache
	workers    int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// ReconstructorOption configures a Reconstructor.
type ReconstructorOption func(*Reconstructor)

// WithDeltaCache sets the cache of parsed update queries.
func WithDeltaCache(c *delta.Cache) ReconstructorOption {
	return func(r *Reconstructor) {
		if c != nil {
			r.deltas = c
		}
	}
}

// WithHistoryCache enables the persistent history cache.
func WithHistoryCache(c HistoryCache) ReconstructorOption {
	return func(r *Reconstructor) {
		r.cache = c
	}
}

// WithWorkers sets how many entities are reconstructed concurrently.
func WithWorkers(n int) ReconstructorOption {
	return func(r *Reconstructor) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithReconstructorLogger sets the logger.
func WithReconstructorLogger(l *slog.Logger) ReconstructorOption {
	return func(r *Reconstructor) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReconstructorMetrics sets the metrics sink.
func WithReconstructorMetrics(m *metrics.Metrics) ReconstructorOption {
	return func(r *Reconstructor) {
		r.metrics = m
	}
}

// NewReconstructor creates a Reconstructor reading present data from
// dataset and snapshots from provenance. Both may be the same store.
func NewReconstructor(dataset, provenance source.GraphStore, opts ...ReconstructorOption) *Reconstructor {
	r := &Reconstructor{
		dataset:    dataset,
		provenance: provenance,
		workers:    DefaultWorkers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.deltas == nil {
		c, err := delta.NewCache(delta.NewParser(delta.WithLogger(r.logger)), 0)
		if err != nil {
			panic(fmt.Sprintf("engine: create delta cache: %v", err))
		}
		r.deltas = c
	}
	return r
}

// record is the raw material of a reconstruction: the present graph and
// the decoded snapshots, ascending.
type record struct {
	entity string
	now    *ir.Graph
	snaps  []ir.Snapshot
}

func (r *Reconstructor) load(ctx context.Context, entity string) (*record, error) {
	current, err := r.dataset.Match(ctx, ir.Quad{Subject: ir.IRI(entity)})
	if err != nil {
		return nil, fmt.Errorf("read present state of %s: %w", entity, err)
	}

	snaps, err := prov.Snapshots(ctx, r.provenance, entity)
	if err != nil {
		var ie *prov.InvalidSnapshotError
		var de *prov.DuplicateTimeError
		switch {
		case errors.As(err, &ie):
			return nil, &ReconstructionError{Entity: entity, Snapshot: ie.Snapshot, Err: err}
		case errors.As(err, &de):
			return nil, &ReconstructionError{Entity: entity, Snapshot: de.Second, Err: err}
		}
		return nil, err
	}

	for i := range snaps {
		if snaps[i].RawDelta == "" {
			continue
		}
		d, err := r.deltas.ParseSnapshot(snaps[i].ID, snaps[i].RawDelta)
		if err != nil {
			return nil, &ReconstructionError{Entity: entity, Snapshot: snaps[i].ID, Err: err}
		}
		d = ir.Delta{
			Inserted: slices.DeleteFunc(slices.Clone(d.Inserted), isProvQuad),
			Deleted:  slices.DeleteFunc(slices.Clone(d.Deleted), isProvQuad),
		}
		snaps[i].Delta = &d
	}

	return &record{
		entity: entity,
		now:    ir.NewGraph(slices.DeleteFunc(current, isProvQuad)...),
		snaps:  snaps,
	}, nil
}

func isProvQuad(q ir.Quad) bool {
	return !prov.IsDataQuad(q)
}

// cacheKey identifies the history of rec: the newest snapshot fixes the
// past, the fingerprint fixes the present.
func (rec *record) cacheKey() (string, error) {
	fp, err := ir.GraphFingerprint(rec.now)
	if err != nil {
		return "", err
	}
	newest := rec.snaps[len(rec.snaps)-1]
	return fmt.Sprintf("%s|%s|%d|%s", rec.entity, newest.ID, len(rec.snaps), fp), nil
}

// build walks the snapshots newest to oldest, undoing one delta per step.
// It returns the history and the number of deltas applied.
func (r *Reconstructor) build(ctx context.Context, rec *record) (*ir.EntityHistory, int, bool) {
	h := &ir.EntityHistory{Entity: rec.entity, Now: rec.now}
	n := len(rec.snaps)
	if n == 0 {
		h.PreHistoryUnknown = rec.now.Len() > 0
		return h, 0, false
	}

	key := ""
	if r.cache != nil {
		var err error
		if key, err = rec.cacheKey(); err != nil {
			r.logger.Warn("cannot key history cache", "entity", rec.entity, "error", err)
		} else if graphs, ok, err := r.cache.Load(ctx, key); err != nil {
			r.logger.Warn("history cache read failed", "entity", rec.entity, "error", err)
		} else if ok && len(graphs) > 0 && len(graphs) <= n {
			first := n - len(graphs)
			for i, g := range graphs {
				s := &rec.snaps[first+i]
				h.States = append(h.States, ir.State{Time: s.GeneratedAt, Graph: g, Snapshot: s})
			}
			h.KnownSince = rec.snaps[first].GeneratedAt
			h.PreHistoryUnknown = first > 0
			return h, 0, true
		}
	}

	states := make([]ir.State, n)
	first := 0
	replayed := 0
	g := rec.now
	for i := n - 1; i >= 0; i-- {
		s := &rec.snaps[i]
		states[i] = ir.State{Time: s.GeneratedAt, Graph: g, Snapshot: s}
		if i == 0 {
			break
		}
		if s.Delta == nil {
			first = i
			h.PreHistoryUnknown = true
			break
		}
		g = g.Apply(s.Delta.Inverted())
		replayed++
	}
	h.States = states[first:]
	h.KnownSince = rec.snaps[first].GeneratedAt

	if r.cache != nil && key != "" {
		graphs := make([]*ir.Graph, len(h.States))
		for i, st := range h.States {
			graphs[i] = st.Graph
		}
		if err := r.cache.Store(ctx, key, graphs); err != nil {
			r.logger.Warn("history cache write failed", "entity", rec.entity, "error", err)
		}
	}
	return h, replayed, false
}

// Reconstruct rebuilds the history of one entity. Provenance quads never
// appear in the returned graphs.
func (r *Reconstructor) Reconstruct(ctx context.Context, entity string) (*ir.EntityHistory, error) {
	start := time.Now()
	rec, err := r.load(ctx, entity)
	if err != nil {
		r.metrics.ObserveReconstruction(metrics.OutcomeError, 0, time.Since(start))
		return nil, err
	}

	h, replayed, cached := r.build(ctx, rec)
	outcome := metrics.OutcomeOK
	if cached {
		outcome = metrics.OutcomeCached
	}
	r.metrics.ObserveReconstruction(outcome, replayed, time.Since(start))

	r.logger.Debug("reconstructed entity history",
		"entity", entity,
		"snapshots", len(rec.snaps),
		"states", len(h.States),
		"pre_history_unknown", h.PreHistoryUnknown,
		"cached", cached,
	)
	return h, nil
}

// relatedSubjects lists the entities that currently point at entity
// through a data predicate.
func (r *Reconstructor) relatedSubjects(ctx context.Context, entity string) ([]string, error) {
	quads, err := r.dataset.Match(ctx, ir.Quad{Object: ir.IRI(entity)})
	if err != nil {
		return nil, fmt.Errorf("read entities related to %s: %w", entity, err)
	}
	var out []string
	for _, q := range quads {
		if !prov.IsDataQuad(q) || !q.Subject.IsIRI() || q.Subject.Value == entity {
			continue
		}
		if !slices.Contains(out, q.Subject.Value) {
			out = append(out, q.Subject.Value)
		}
	}
	slices.Sort(out)
	return out, nil
}

// reconstructEntity rebuilds entity and, when related is set, every entity
// pointing at it (one hop). Failures of related entities are joined into
// the returned error while the other histories are still returned.
func (r *Reconstructor) reconstructEntity(ctx context.Context, entity string, related bool, visited *VisitedSet) (ir.Histories, error) {
	h, err := r.Reconstruct(ctx, entity)
	if err != nil {
		return nil, err
	}
	hs := ir.Histories{entity: h}
	if !related {
		return hs, nil
	}

	subjects, err := r.relatedSubjects(ctx, entity)
	if err != nil {
		return hs, err
	}
	var errs []error
	for _, s := range subjects {
		if visited != nil && !visited.Claim(s) {
			continue
		}
		sh, err := r.Reconstruct(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		hs[s] = sh
	}
	return hs, errors.Join(errs...)
}

// ReconstructRelated rebuilds entity together with the entities currently
// linking to it. When only related entities fail, their errors are joined
// and returned alongside the histories that could be built.
func (r *Reconstructor) ReconstructRelated(ctx context.Context, entity string) (ir.Histories, error) {
	return r.reconstructEntity(ctx, entity, true, nil)
}

// ReconstructMany rebuilds the histories of several entities on the worker
// pool. Per-entity failures are joined into the error; the histories of the
// other entities are returned regardless. Context cancellation returns no
// histories.
func (r *Reconstructor) ReconstructMany(ctx context.Context, entities []string, related bool) (ir.Histories, error) {
	hs, failures, err := r.gather(ctx, entities, related, NewVisitedSet())
	if err != nil {
		return nil, err
	}
	return hs, errors.Join(failures...)
}

// gather reconstructs every entity not yet claimed in visited. Failures are
// returned per entity; only context errors abort.
func (r *Reconstructor) gather(ctx context.Context, entities []string, related bool, visited *VisitedSet) (ir.Histories, []error, error) {
	var (
		mu       sync.Mutex
		out      = make(ir.Histories)
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, e := range entities {
		if !visited.Claim(e) {
			continue
		}
		g.Go(func() error {
			hs, err := r.reconstructEntity(gctx, e, related, visited)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			mu.Lock()
			defer mu.Unlock()
			if hs != nil {
				out.Merge(hs)
			}
			if err != nil {
				failures = append(failures, unjoin(err)...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Error() < failures[j].Error()
	})
	return out, failures, nil
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

// StateOption configures StateAt.
type StateOption func(*stateConfig)

type stateConfig struct {
	hooks bool
}

// WithHooks makes StateAt also return the full history split around t.
func WithHooks() StateOption {
	return func(c *stateConfig) {
		c.hooks = true
	}
}

// StateAt returns the state of entity at instant t. Only the snapshots
// generated after t are undone, newest first, one delta at a time.
//
// The graph is nil, and PreHistoryUnknown set, when a snapshot after t
// carries no delta or when the entity has present data but no provenance
// at all. A creation snapshot without an update query therefore leaves
// every instant before it unknown; one with an update query is undone like
// any other.
func (r *Reconstructor) StateAt(ctx context.Context, entity string, t time.Time, opts ...StateOption) (*ir.PointInTime, error) {
	var cfg stateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	rec, err := r.load(ctx, entity)
	if err != nil {
		r.metrics.ObserveReconstruction(metrics.OutcomeError, 0, time.Since(start))
		return nil, err
	}

	p := &ir.PointInTime{Entity: entity, Time: t.UTC()}
	at := sort.Search(len(rec.snaps), func(i int) bool {
		return rec.snaps[i].GeneratedAt.After(t)
	})
	if at > 0 {
		p.Snapshot = &rec.snaps[at-1]
	}

	switch {
	case len(rec.snaps) == 0 && rec.now.Len() > 0:
		p.PreHistoryUnknown = true
	case len(rec.snaps) == 0:
		p.Graph = ir.EmptyGraph()
	default:
		g := rec.now
		for i := len(rec.snaps) - 1; i >= at; i-- {
			s := rec.snaps[i]
			if s.Delta == nil {
				g = nil
				p.PreHistoryUnknown = true
				break
			}
			g = g.Apply(s.Delta.Inverted())
			p.Undone++
		}
		p.Graph = g
	}
	r.metrics.ObserveReconstruction(metrics.OutcomeOK, p.Undone, time.Since(start))

	if cfg.hooks {
		h, _, _ := r.build(ctx, rec)
		for _, st := range h.States {
			if st.Time.After(t) {
				p.After = append(p.After, st)
			} else {
				p.Before = append(p.Before, st)
			}
		}
	}

	r.logger.Debug("reconstructed entity state",
		"entity", entity,
		"time", ir.TimeLabel(t),
		"undone", p.Undone,
		"pre_history_unknown", p.PreHistoryUnknown,
	)
	return p, nil
}
