package ir

import (
	"slices"
	"strings"
)

// Quad is a triple plus the graph it belongs to.
// A zero Graph means the default graph.
type Quad struct {
	Subject   Term `json:"subject"`
	Predicate Term `json:"predicate"`
	Object    Term `json:"object"`
	Graph     Term `json:"graph"`
}

// Triple creates a quad in the default graph.
func Triple(s, p, o Term) Quad {
	return Quad{Subject: s, Predicate: p, Object: o}
}

// NewQuad creates a quad in the named graph g.
func NewQuad(s, p, o, g Term) Quad {
	return Quad{Subject: s, Predicate: p, Object: o, Graph: g}
}

// String renders q as a single N-Quads statement without a trailing newline.
func (q Quad) String() string {
	var b strings.Builder
	b.WriteString(q.Subject.String())
	b.WriteByte(' ')
	b.WriteString(q.Predicate.String())
	b.WriteByte(' ')
	b.WriteString(q.Object.String())
	if !q.Graph.IsZero() {
		b.WriteByte(' ')
		b.WriteString(q.Graph.String())
	}
	b.WriteString(" .")
	return b.String()
}

// Matches reports whether q matches the pattern p, where zero terms in p
// are wildcards. A zero pattern graph matches quads in any graph.
func (q Quad) Matches(p Quad) bool {
	if !p.Subject.IsZero() && p.Subject != q.Subject {
		return false
	}
	if !p.Predicate.IsZero() && p.Predicate != q.Predicate {
		return false
	}
	if !p.Object.IsZero() && p.Object != q.Object {
		return false
	}
	if !p.Graph.IsZero() && p.Graph != q.Graph {
		return false
	}
	return true
}

// CompareQuads orders quads by graph, subject, predicate then object.
func CompareQuads(a, b Quad) int {
	if c := CompareTerms(a.Graph, b.Graph); c != 0 {
		return c
	}
	if c := CompareTerms(a.Subject, b.Subject); c != 0 {
		return c
	}
	if c := CompareTerms(a.Predicate, b.Predicate); c != 0 {
		return c
	}
	return CompareTerms(a.Object, b.Object)
}

// SortQuads sorts quads in place into canonical order.
func SortQuads(qs []Quad) {
	slices.SortFunc(qs, CompareQuads)
}

// DedupQuads returns qs sorted with duplicates removed.
func DedupQuads(qs []Quad) []Quad {
	out := slices.Clone(qs)
	SortQuads(out)
	return slices.Compact(out)
}

// Tuple is one query solution, ordered by the projected variables.
// A zero Term marks an unbound variable.
type Tuple []Term

// Key returns a string that identifies the tuple's contents.
func (t Tuple) Key() string {
	parts := make([]string, len(t))
	for i, term := range t {
		parts[i] = term.String()
	}
	return strings.Join(parts, "\x1f")
}

// CompareTuples orders tuples element-wise.
func CompareTuples(a, b Tuple) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareTerms(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}
