package source

import (
	"context"
	"sync"

	"github.com/roach88/timeagnostic/internal/ir"
)

// Memory is an in-memory quad store indexed by subject, predicate and
// object. Writes and reads may interleave from any goroutine.
type Memory struct {
	mu    sync.RWMutex
	quads map[ir.Quad]struct{}
	bySub map[ir.Term]map[ir.Quad]struct{}
	byPre map[ir.Term]map[ir.Quad]struct{}
	byObj map[ir.Term]map[ir.Quad]struct{}
}

// NewMemory creates a store holding quads.
func NewMemory(quads ...ir.Quad) *Memory {
	m := &Memory{
		quads: make(map[ir.Quad]struct{}),
		bySub: make(map[ir.Term]map[ir.Quad]struct{}),
		byPre: make(map[ir.Term]map[ir.Quad]struct{}),
		byObj: make(map[ir.Term]map[ir.Quad]struct{}),
	}
	m.Add(quads...)
	return m
}

func index(idx map[ir.Term]map[ir.Quad]struct{}, key ir.Term, q ir.Quad) {
	set, ok := idx[key]
	if !ok {
		set = make(map[ir.Quad]struct{})
		idx[key] = set
	}
	set[q] = struct{}{}
}

func unindex(idx map[ir.Term]map[ir.Quad]struct{}, key ir.Term, q ir.Quad) {
	if set, ok := idx[key]; ok {
		delete(set, q)
		if len(set) == 0 {
			delete(idx, key)
		}
	}
}

// Add inserts quads.
func (m *Memory) Add(quads ...ir.Quad) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range quads {
		if _, ok := m.quads[q]; ok {
			continue
		}
		m.quads[q] = struct{}{}
		index(m.bySub, q.Subject, q)
		index(m.byPre, q.Predicate, q)
		index(m.byObj, q.Object, q)
	}
}

// Remove deletes quads.
func (m *Memory) Remove(quads ...ir.Quad) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range quads {
		if _, ok := m.quads[q]; !ok {
			continue
		}
		delete(m.quads, q)
		unindex(m.bySub, q.Subject, q)
		unindex(m.byPre, q.Predicate, q)
		unindex(m.byObj, q.Object, q)
	}
}

// Len returns the number of stored quads.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.quads)
}

// Match implements GraphStore. The smallest applicable index is scanned.
func (m *Memory) Match(ctx context.Context, pattern ir.Quad) ([]ir.Quad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := m.quads
	for _, c := range []struct {
		key ir.Term
		idx map[ir.Term]map[ir.Quad]struct{}
	}{
		{pattern.Subject, m.bySub},
		{pattern.Object, m.byObj},
		{pattern.Predicate, m.byPre},
	} {
		if c.key.IsZero() {
			continue
		}
		set := c.idx[c.key]
		if len(set) < len(candidates) {
			candidates = set
		}
	}

	var out []ir.Quad
	for q := range candidates {
		if q.Matches(pattern) {
			out = append(out, q)
		}
	}
	ir.SortQuads(out)
	return out, nil
}
