package queryir

import (
	"fmt"
	"slices"
)

// ValidationResult reports problems found in a query that do not prevent
// evaluation but usually mean the query will not return what its author
// expects.
type ValidationResult struct {
	// Answerable is false when no pattern has a concrete subject or object,
	// so there is nothing to reconstruct history from.
	Answerable bool

	Warnings []string
}

// Validate inspects a query. It is a pure function.
func Validate(q *SelectQuery) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validate(q)
	return ValidationResult{
		Answerable: v.anchored,
		Warnings:   v.warnings,
	}
}

type validator struct {
	warnings []string
	anchored bool
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validate(q *SelectQuery) {
	if q == nil {
		v.addWarning("nil query")
		return
	}
	if len(q.Where.Elements) == 0 {
		v.addWarning("empty WHERE clause")
	}
	if q.Limit == 0 {
		v.addWarning("LIMIT 0 never returns results")
	}

	patterns := Flatten(q.Where)
	var bound []string
	for _, tp := range patterns {
		for _, n := range []Node{tp.Subject, tp.Predicate, tp.Object, tp.Graph} {
			if n.IsVar() {
				if !slices.Contains(bound, n.Var) {
					bound = append(bound, n.Var)
				}
			}
		}
		if !tp.Subject.IsVar() || !tp.Object.IsVar() {
			v.anchored = true
		}
		if tp.Predicate.Term.IsLiteral() {
			v.addWarning("literal in predicate position: %s", tp)
		}
		if tp.Graph.Term.IsLiteral() {
			v.addWarning("literal graph name: %s", tp)
		}
	}

	for _, name := range q.Vars {
		if !slices.Contains(bound, name) {
			v.addWarning("projected variable ?%s is not used in WHERE", name)
		}
	}

	v.validateOptionals(q.Where)
}

// validateOptionals flags groups made only of OPTIONAL blocks, which match
// the empty solution and nothing else.
func (v *validator) validateOptionals(root Group) {
	stack := []Group{root}
	for len(stack) > 0 {
		g := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		required := 0
		for _, el := range g.Elements {
			switch p := el.(type) {
			case TriplePattern:
				required++
			case Optional:
				stack = append(stack, p.Group)
			case GraphGroup:
				required++
				stack = append(stack, p.Group)
			}
		}
		if required == 0 && len(g.Elements) > 0 {
			v.addWarning("group contains only OPTIONAL blocks")
		}
	}
}
