package ir

import (
	"sync"
)

// MaxOverlayDepth bounds the length of an overlay chain. Apply flattens
// the result into a standalone graph once the chain grows past it, which
// keeps lookups bounded on long histories.
const MaxOverlayDepth = 32

type quadSet map[Quad]struct{}

func newQuadSet(qs []Quad) quadSet {
	s := make(quadSet, len(qs))
	for _, q := range qs {
		s[q] = struct{}{}
	}
	return s
}

// Graph is an immutable set of quads.
//
// A graph is either a base graph holding all of its quads, or an overlay
// {parent, added, removed} describing (parent − removed) ∪ added. Apply
// builds overlays in O(|delta|) so the states of a long history share most
// of their storage. The full quad set is materialized lazily, once.
//
// Thread-safety: a Graph is safe for concurrent readers.
type Graph struct {
	parent  *Graph
	added   quadSet
	removed quadSet
	depth   int

	once   sync.Once
	sorted []Quad
}

// NewGraph creates a base graph holding the given quads.
func NewGraph(quads ...Quad) *Graph {
	return &Graph{added: newQuadSet(quads)}
}

// EmptyGraph returns a graph with no quads.
func EmptyGraph() *Graph {
	return NewGraph()
}

// Apply returns (g − d.Deleted) ∪ d.Inserted. g is left untouched.
func (g *Graph) Apply(d Delta) *Graph {
	next := &Graph{
		parent:  g,
		added:   newQuadSet(d.Inserted),
		removed: newQuadSet(d.Deleted),
		depth:   g.depth + 1,
	}
	if next.depth > MaxOverlayDepth {
		return NewGraph(next.Quads()...)
	}
	return next
}

// Contains reports whether q is in the graph.
func (g *Graph) Contains(q Quad) bool {
	for n := g; n != nil; n = n.parent {
		if _, ok := n.added[q]; ok {
			return true
		}
		if _, ok := n.removed[q]; ok {
			return false
		}
	}
	return false
}

// Quads returns the graph's quads in canonical order.
// The returned slice is shared and must not be modified.
func (g *Graph) Quads() []Quad {
	g.once.Do(g.materialize)
	return g.sorted
}

// materialize walks the overlay chain from the root and replays each
// layer, so it runs without recursion on arbitrarily deep chains.
func (g *Graph) materialize() {
	var chain []*Graph
	for n := g; n != nil; n = n.parent {
		chain = append(chain, n)
	}

	set := make(quadSet)
	for i := len(chain) - 1; i >= 0; i-- {
		layer := chain[i]
		for q := range layer.removed {
			delete(set, q)
		}
		for q := range layer.added {
			set[q] = struct{}{}
		}
	}

	out := make([]Quad, 0, len(set))
	for q := range set {
		out = append(out, q)
	}
	SortQuads(out)
	g.sorted = out
}

// Len returns the number of quads in the graph.
func (g *Graph) Len() int {
	return len(g.Quads())
}

// Match returns the quads matching pattern, where zero terms are wildcards.
func (g *Graph) Match(pattern Quad) []Quad {
	var out []Quad
	for _, q := range g.Quads() {
		if q.Matches(pattern) {
			out = append(out, q)
		}
	}
	return out
}

// Filter returns a base graph with the quads for which keep returns true.
func (g *Graph) Filter(keep func(Quad) bool) *Graph {
	var out []Quad
	for _, q := range g.Quads() {
		if keep(q) {
			out = append(out, q)
		}
	}
	return NewGraph(out...)
}

// Equal reports whether g and other hold the same quads.
func (g *Graph) Equal(other *Graph) bool {
	a, b := g.Quads(), other.Quads()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Union returns a base graph holding every quad of the given graphs.
// Nil graphs are skipped.
func Union(graphs ...*Graph) *Graph {
	set := make(quadSet)
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, q := range g.Quads() {
			set[q] = struct{}{}
		}
	}
	out := make([]Quad, 0, len(set))
	for q := range set {
		out = append(out, q)
	}
	return NewGraph(out...)
}

// NTriples renders the graph as sorted N-Quads statements, one per element.
func (g *Graph) NTriples() []string {
	qs := g.Quads()
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.String()
	}
	return out
}
