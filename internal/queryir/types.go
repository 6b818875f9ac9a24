package queryir

import (
	"slices"

	"github.com/roach88/timeagnostic/internal/ir"
)

// Node is one position of a triple pattern: a variable or a concrete term.
// The zero Node is unset, which only the Graph position allows (default
// graph).
type Node struct {
	Var  string  `json:"var,omitempty"`
	Term ir.Term `json:"term,omitzero"`
}

// Variable returns a variable node. name is given without the ? sigil.
func Variable(name string) Node {
	return Node{Var: name}
}

// Const returns a concrete node.
func Const(t ir.Term) Node {
	return Node{Term: t}
}

// IsVar reports whether the node is a variable.
func (n Node) IsVar() bool {
	return n.Var != ""
}

// IsZero reports whether the node is unset.
func (n Node) IsZero() bool {
	return n.Var == "" && n.Term.IsZero()
}

func (n Node) String() string {
	if n.IsVar() {
		return "?" + n.Var
	}
	return n.Term.String()
}

// Pattern is an element of a group graph pattern.
//
// This is a sealed interface; only types in this package implement it.
type Pattern interface {
	patternNode()
}

// TriplePattern matches quads. Graph is unset outside GRAPH blocks.
type TriplePattern struct {
	Subject   Node
	Predicate Node
	Object    Node
	Graph     Node
}

func (TriplePattern) patternNode() {}

// Vars returns the distinct variables of the pattern in position order.
func (tp TriplePattern) Vars() []string {
	var out []string
	for _, n := range []Node{tp.Subject, tp.Predicate, tp.Object, tp.Graph} {
		if n.IsVar() && !slices.Contains(out, n.Var) {
			out = append(out, n.Var)
		}
	}
	return out
}

// Quad returns the pattern as a match pattern: variables become wildcards.
func (tp TriplePattern) Quad() ir.Quad {
	term := func(n Node) ir.Term {
		if n.IsVar() {
			return ir.Term{}
		}
		return n.Term
	}
	return ir.Quad{
		Subject:   term(tp.Subject),
		Predicate: term(tp.Predicate),
		Object:    term(tp.Object),
		Graph:     term(tp.Graph),
	}
}

func (tp TriplePattern) String() string {
	s := tp.Subject.String() + " " + tp.Predicate.String() + " " + tp.Object.String()
	if !tp.Graph.IsZero() {
		return "GRAPH " + tp.Graph.String() + " { " + s + " }"
	}
	return s
}

// Group is a conjunction of patterns.
type Group struct {
	Elements []Pattern
}

// Optional left-joins its group against the enclosing solutions.
type Optional struct {
	Group Group
}

func (Optional) patternNode() {}

// GraphGroup evaluates its group inside the graph named by Graph, which may
// be a variable.
type GraphGroup struct {
	Graph Node
	Group Group
}

func (GraphGroup) patternNode() {}

// NoLimit marks a query without a LIMIT clause.
const NoLimit = -1

// SelectQuery is a parsed SELECT query.
type SelectQuery struct {
	Prefixes map[string]string
	Distinct bool
	// Vars are the projected variables; nil means SELECT *.
	Vars  []string
	Where Group
	Limit int
}

// Projection returns the projected variables. For SELECT * these are the
// variables of the WHERE clause in order of first appearance.
func (q *SelectQuery) Projection() []string {
	if q.Vars != nil {
		return q.Vars
	}
	var out []string
	for _, tp := range Flatten(q.Where) {
		for _, v := range tp.Vars() {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	return out
}

// Flatten returns every triple pattern of g in document order, including
// those nested in OPTIONAL and GRAPH blocks. Patterns inside a GRAPH block
// carry its graph node.
func Flatten(g Group) []TriplePattern {
	type frame struct {
		elems []Pattern
		graph Node
	}
	var out []TriplePattern
	stack := []frame{{elems: g.Elements}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.elems) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		el := top.elems[0]
		top.elems = top.elems[1:]
		graph := top.graph

		switch p := el.(type) {
		case TriplePattern:
			if p.Graph.IsZero() {
				p.Graph = graph
			}
			out = append(out, p)
		case Optional:
			stack = append(stack, frame{elems: p.Group.Elements, graph: graph})
		case GraphGroup:
			stack = append(stack, frame{elems: p.Group.Elements, graph: p.Graph})
		}
	}
	return out
}
