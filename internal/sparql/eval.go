package sparql

import (
	"context"
	"slices"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/queryir"
)

type binding map[string]ir.Term

func (b binding) extend(name string, t ir.Term) (binding, bool) {
	if cur, ok := b[name]; ok {
		return b, cur == t
	}
	out := make(binding, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	out[name] = t
	return out, true
}

// row is a partial solution. origin indexes the solution of the enclosing
// OPTIONAL frame it was derived from.
type row struct {
	b      binding
	origin int
}

type evalFrame struct {
	elems    []queryir.Pattern
	graph    queryir.Node
	rows     []row
	optional bool
	// base holds the input rows of an OPTIONAL frame.
	base []row
}

type evaluator struct {
	g      *ir.Graph
	coerce bool
}

// solve computes the solutions of the WHERE clause of q over g.
func (ev *evaluator) solve(ctx context.Context, where queryir.Group) ([]binding, error) {
	stack := []*evalFrame{{elems: where.Elements, rows: []row{{b: binding{}}}}}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]

		if len(top.elems) == 0 {
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				out := make([]binding, len(top.rows))
				for i, r := range top.rows {
					out[i] = r.b
				}
				return out, nil
			}
			parent := stack[len(stack)-1]
			if top.optional {
				parent.rows = leftJoin(top.base, top.rows)
			} else {
				parent.rows = top.rows
			}
			continue
		}

		el := top.elems[0]
		top.elems = top.elems[1:]
		switch p := el.(type) {
		case queryir.TriplePattern:
			if p.Graph.IsZero() {
				p.Graph = top.graph
			}
			top.rows = ev.join(top.rows, p)
		case queryir.Optional:
			child := &evalFrame{elems: p.Group.Elements, graph: top.graph, optional: true, base: top.rows}
			child.rows = make([]row, len(top.rows))
			for i, r := range top.rows {
				child.rows[i] = row{b: r.b, origin: i}
			}
			stack = append(stack, child)
		case queryir.GraphGroup:
			stack = append(stack, &evalFrame{elems: p.Group.Elements, graph: p.Graph, rows: top.rows})
		}
	}
}

// leftJoin keeps, for every base row, the rows derived from it or the base
// row itself when the optional group did not match.
func leftJoin(base, derived []row) []row {
	groups := make([][]row, len(base))
	for _, r := range derived {
		groups[r.origin] = append(groups[r.origin], row{b: r.b, origin: base[r.origin].origin})
	}
	out := make([]row, 0, len(base))
	for i, br := range base {
		if len(groups[i]) > 0 {
			out = append(out, groups[i]...)
		} else {
			out = append(out, br)
		}
	}
	return out
}

// join extends every row with the matches of tp.
func (ev *evaluator) join(rows []row, tp queryir.TriplePattern) []row {
	var out []row
	for _, r := range rows {
		pattern, literal := ev.substitute(r.b, tp)
		for _, q := range ev.g.Match(pattern) {
			if !literal.IsZero() && !valueEqual(literal, q.Object) {
				continue
			}
			if tp.Graph.IsVar() && q.Graph.IsZero() {
				continue
			}
			b, ok := bindQuad(r.b, tp, q)
			if ok {
				out = append(out, row{b: b, origin: r.origin})
			}
		}
	}
	return out
}

// substitute turns tp into a match pattern under b. With literal coercion a
// literal object is matched by value after the lookup, so it is returned
// separately and left as a wildcard in the pattern.
func (ev *evaluator) substitute(b binding, tp queryir.TriplePattern) (ir.Quad, ir.Term) {
	resolve := func(n queryir.Node) ir.Term {
		if n.IsVar() {
			return b[n.Var]
		}
		return n.Term
	}
	q := ir.Quad{
		Subject:   resolve(tp.Subject),
		Predicate: resolve(tp.Predicate),
		Object:    resolve(tp.Object),
		Graph:     resolve(tp.Graph),
	}
	var literal ir.Term
	if ev.coerce && q.Object.IsLiteral() {
		literal = q.Object
		q.Object = ir.Term{}
	}
	return q, literal
}

func bindQuad(b binding, tp queryir.TriplePattern, q ir.Quad) (binding, bool) {
	ok := true
	for _, pos := range []struct {
		n queryir.Node
		t ir.Term
	}{{tp.Subject, q.Subject}, {tp.Predicate, q.Predicate}, {tp.Object, q.Object}, {tp.Graph, q.Graph}} {
		if !pos.n.IsVar() {
			continue
		}
		if b, ok = b.extend(pos.n.Var, pos.t); !ok {
			return nil, false
		}
	}
	return b, true
}

// project renders solutions as tuples over vars, deduplicated and sorted,
// and applies limit. Unbound variables yield zero terms.
func project(sols []binding, vars []string, limit int) []ir.Tuple {
	seen := make(map[string]bool, len(sols))
	out := make([]ir.Tuple, 0, len(sols))
	for _, s := range sols {
		t := make(ir.Tuple, len(vars))
		for i, v := range vars {
			t[i] = s[v]
		}
		k := t.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	slices.SortFunc(out, ir.CompareTuples)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
