// Package sparql parses and evaluates the SELECT subset of SPARQL 1.1 the
// time-agnostic engine answers: PREFIX declarations, SELECT [DISTINCT] with
// explicit variables or *, triple patterns with the a, ";" and ","
// shorthands, nested OPTIONAL, GRAPH blocks and LIMIT.
//
// Parsing and evaluation walk nested groups with explicit stacks.
package sparql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/queryir"
	"github.com/roach88/timeagnostic/internal/rdfsyntax"
)

const (
	rdfType    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	xsd        = "http://www.w3.org/2001/XMLSchema#"
	xsdInteger = xsd + "integer"
	xsdDecimal = xsd + "decimal"
	xsdDouble  = xsd + "double"
	xsdBoolean = xsd + "boolean"
)

// NotSelectError reports a well-formed query of another form (ASK,
// CONSTRUCT, DESCRIBE or an update).
type NotSelectError struct {
	Form string
}

func (e *NotSelectError) Error() string {
	return fmt.Sprintf("%s queries are not supported, only SELECT", e.Form)
}

// UnsupportedFeatureError reports a SPARQL construct outside the supported
// subset.
type UnsupportedFeatureError struct {
	Feature string
	Offset  int
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported SPARQL feature %s at offset %d", e.Feature, e.Offset)
}

// IsNotSelect returns true if the error is a NotSelectError.
func IsNotSelect(err error) bool {
	var ne *NotSelectError
	return errors.As(err, &ne)
}

var otherForms = map[string]bool{
	"ASK": true, "CONSTRUCT": true, "DESCRIBE": true,
	"INSERT": true, "DELETE": true, "LOAD": true, "CLEAR": true,
	"CREATE": true, "DROP": true, "COPY": true, "MOVE": true, "ADD": true, "WITH": true,
}

var unsupportedKeywords = map[string]bool{
	"FILTER": true, "UNION": true, "MINUS": true, "BIND": true, "VALUES": true,
	"SERVICE": true, "FROM": true, "ORDER": true, "GROUP": true, "HAVING": true,
	"OFFSET": true, "REDUCED": true,
}

type parser struct {
	cur      *rdfsyntax.Cursor
	prefixes map[string]string
	base     string
}

func newParser(src string) (*parser, error) {
	toks, err := rdfsyntax.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return &parser{cur: rdfsyntax.NewCursor(toks), prefixes: make(map[string]string)}, nil
}

// Parse parses a SELECT query.
func Parse(src string) (*queryir.SelectQuery, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	if err := p.prologue(); err != nil {
		return nil, err
	}
	return p.selectQuery()
}

// QueryForm returns the upper-case keyword that starts the query body
// (SELECT, ASK, ...).
func QueryForm(src string) (string, error) {
	p, err := newParser(src)
	if err != nil {
		return "", err
	}
	if err := p.prologue(); err != nil {
		return "", err
	}
	t := p.cur.Peek()
	if t.Kind != rdfsyntax.Word {
		return "", p.cur.Errorf("expected query form, found %s", t)
	}
	form := strings.ToUpper(t.Value)
	if form != "SELECT" && !otherForms[form] {
		return "", p.cur.Errorf("unknown query form %s", t.Value)
	}
	return form, nil
}

func (p *parser) prologue() error {
	for {
		t := p.cur.Peek()
		switch {
		case t.IsWord("PREFIX"):
			p.cur.Next()
			name := p.cur.Next()
			if name.Kind != rdfsyntax.PName || !strings.HasSuffix(name.Value, ":") {
				return p.cur.Errorf("expected prefix name, found %s", name)
			}
			iri := p.cur.Next()
			if iri.Kind != rdfsyntax.IRIRef {
				return p.cur.Errorf("expected IRI, found %s", iri)
			}
			p.prefixes[strings.TrimSuffix(name.Value, ":")] = p.resolveRelative(iri.Value)
		case t.IsWord("BASE"):
			p.cur.Next()
			iri := p.cur.Next()
			if iri.Kind != rdfsyntax.IRIRef {
				return p.cur.Errorf("expected IRI, found %s", iri)
			}
			p.base = iri.Value
		default:
			return nil
		}
	}
}

func (p *parser) resolveRelative(iri string) string {
	if p.base == "" || strings.Contains(iri, ":") {
		return iri
	}
	return p.base + iri
}

func (p *parser) expandPName(t rdfsyntax.Token) (string, error) {
	prefix, local, _ := strings.Cut(t.Value, ":")
	ns, ok := p.prefixes[prefix]
	if !ok {
		return "", &rdfsyntax.SyntaxError{Offset: t.Offset, Message: fmt.Sprintf("undeclared prefix %q", prefix)}
	}
	return ns + local, nil
}

func (p *parser) selectQuery() (*queryir.SelectQuery, error) {
	t := p.cur.Peek()
	if t.Kind == rdfsyntax.Word && otherForms[strings.ToUpper(t.Value)] {
		return nil, &NotSelectError{Form: strings.ToUpper(t.Value)}
	}
	if err := p.cur.ExpectWord("SELECT"); err != nil {
		return nil, err
	}

	q := &queryir.SelectQuery{Prefixes: p.prefixes, Limit: queryir.NoLimit}
	if p.cur.Peek().IsWord("DISTINCT") {
		p.cur.Next()
		q.Distinct = true
	}

	if p.cur.Peek().Is("*") {
		p.cur.Next()
	} else {
		for p.cur.Peek().Kind == rdfsyntax.Var {
			v := p.cur.Next().Value
			q.Vars = append(q.Vars, v)
		}
		if len(q.Vars) == 0 {
			return nil, p.unexpected()
		}
	}

	if p.cur.Peek().IsWord("WHERE") {
		p.cur.Next()
	}
	where, err := p.group()
	if err != nil {
		return nil, err
	}
	q.Where = where

	if p.cur.Peek().IsWord("LIMIT") {
		p.cur.Next()
		n := p.cur.Next()
		if n.Kind != rdfsyntax.Number {
			return nil, &rdfsyntax.SyntaxError{Offset: n.Offset, Message: fmt.Sprintf("expected LIMIT count, found %s", n)}
		}
		limit, err := strconv.Atoi(n.Value)
		if err != nil || limit < 0 {
			return nil, &rdfsyntax.SyntaxError{Offset: n.Offset, Message: fmt.Sprintf("invalid LIMIT %q", n.Value)}
		}
		q.Limit = limit
	}

	if !p.cur.AtEOF() {
		return nil, p.unexpected()
	}
	return q, nil
}

// unexpected reports the current token, naming it as an unsupported
// feature when it is a known SPARQL keyword.
func (p *parser) unexpected() error {
	t := p.cur.Peek()
	if t.Kind == rdfsyntax.Word && unsupportedKeywords[strings.ToUpper(t.Value)] {
		return &UnsupportedFeatureError{Feature: strings.ToUpper(t.Value), Offset: t.Offset}
	}
	return p.cur.Errorf("unexpected %s", t)
}

type frameKind int

const (
	framePlain frameKind = iota
	frameOptional
	frameGraph
)

type groupFrame struct {
	kind  frameKind
	graph queryir.Node
	elems []queryir.Pattern
}

// group parses a braced group graph pattern.
func (p *parser) group() (queryir.Group, error) {
	if err := p.cur.Expect("{"); err != nil {
		return queryir.Group{}, err
	}
	stack := []*groupFrame{{kind: framePlain}}
	for {
		top := stack[len(stack)-1]
		t := p.cur.Peek()
		switch {
		case t.Kind == rdfsyntax.EOF:
			return queryir.Group{}, p.cur.Errorf("unterminated group")
		case t.Is("}"):
			p.cur.Next()
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return queryir.Group{Elements: top.elems}, nil
			}
			parent := stack[len(stack)-1]
			inner := queryir.Group{Elements: top.elems}
			switch top.kind {
			case frameOptional:
				parent.elems = append(parent.elems, queryir.Optional{Group: inner})
			case frameGraph:
				parent.elems = append(parent.elems, queryir.GraphGroup{Graph: top.graph, Group: inner})
			default:
				parent.elems = append(parent.elems, top.elems...)
			}
		case t.Is("{"):
			p.cur.Next()
			stack = append(stack, &groupFrame{kind: framePlain})
		case t.Is("."):
			p.cur.Next()
		case t.IsWord("OPTIONAL"):
			p.cur.Next()
			if err := p.cur.Expect("{"); err != nil {
				return queryir.Group{}, err
			}
			stack = append(stack, &groupFrame{kind: frameOptional})
		case t.IsWord("GRAPH"):
			p.cur.Next()
			g, err := p.node(false)
			if err != nil {
				return queryir.Group{}, err
			}
			if err := p.cur.Expect("{"); err != nil {
				return queryir.Group{}, err
			}
			stack = append(stack, &groupFrame{kind: frameGraph, graph: g})
		case t.Kind == rdfsyntax.Word && unsupportedKeywords[strings.ToUpper(t.Value)]:
			return queryir.Group{}, p.unexpected()
		default:
			patterns, err := p.triples()
			if err != nil {
				return queryir.Group{}, err
			}
			top.elems = append(top.elems, patterns...)
		}
	}
}

// triples parses one subject with its property list.
func (p *parser) triples() ([]queryir.Pattern, error) {
	subj, err := p.node(true)
	if err != nil {
		return nil, err
	}

	var out []queryir.Pattern
	for {
		pred, err := p.predicate()
		if err != nil {
			return nil, err
		}
		for {
			obj, err := p.node(true)
			if err != nil {
				return nil, err
			}
			out = append(out, queryir.TriplePattern{Subject: subj, Predicate: pred, Object: obj})
			if !p.cur.Peek().Is(",") {
				break
			}
			p.cur.Next()
		}

		if !p.cur.Peek().Is(";") {
			return out, nil
		}
		for p.cur.Peek().Is(";") {
			p.cur.Next()
		}
		if next := p.cur.Peek(); next.Is(".") || next.Is("}") {
			return out, nil
		}
	}
}

func (p *parser) predicate() (queryir.Node, error) {
	if p.cur.Peek().IsWord("a") {
		p.cur.Next()
		return queryir.Const(ir.IRI(rdfType)), nil
	}
	return p.node(false)
}

// node reads a variable or a concrete term.
func (p *parser) node(allowLiteral bool) (queryir.Node, error) {
	t := p.cur.Peek()
	switch t.Kind {
	case rdfsyntax.Var:
		p.cur.Next()
		return queryir.Variable(t.Value), nil
	case rdfsyntax.IRIRef:
		p.cur.Next()
		return queryir.Const(ir.IRI(p.resolveRelative(t.Value))), nil
	case rdfsyntax.PName:
		p.cur.Next()
		iri, err := p.expandPName(t)
		if err != nil {
			return queryir.Node{}, err
		}
		return queryir.Const(ir.IRI(iri)), nil
	case rdfsyntax.BlankNode:
		return queryir.Node{}, &UnsupportedFeatureError{Feature: "blank node in pattern", Offset: t.Offset}
	}

	if !allowLiteral {
		return queryir.Node{}, p.unexpected()
	}
	switch {
	case t.Kind == rdfsyntax.String:
		lit, err := p.cur.ReadLiteral(p.expandPName)
		if err != nil {
			return queryir.Node{}, err
		}
		return queryir.Const(lit), nil
	case t.Kind == rdfsyntax.Number:
		p.cur.Next()
		return queryir.Const(numberLiteral(t.Value)), nil
	case t.IsWord("true"), t.IsWord("false"):
		p.cur.Next()
		return queryir.Const(ir.TypedLiteral(strings.ToLower(t.Value), xsdBoolean)), nil
	}
	return queryir.Node{}, p.unexpected()
}

func numberLiteral(v string) ir.Term {
	switch {
	case strings.ContainsAny(v, "eE"):
		return ir.TypedLiteral(v, xsdDouble)
	case strings.Contains(v, "."):
		return ir.TypedLiteral(v, xsdDecimal)
	default:
		return ir.TypedLiteral(v, xsdInteger)
	}
}
