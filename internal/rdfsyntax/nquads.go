package rdfsyntax

import (
	"strings"

	"github.com/roach88/timeagnostic/internal/ir"
)

// Cursor walks a token slice produced by Tokenize.
type Cursor struct {
	toks []Token
	pos  int
}

// NewCursor creates a cursor over toks. toks must end with an EOF token.
func NewCursor(toks []Token) *Cursor {
	return &Cursor{toks: toks}
}

// Peek returns the current token without consuming it.
func (c *Cursor) Peek() Token {
	return c.toks[c.pos]
}

// PeekAt returns the token n positions ahead.
func (c *Cursor) PeekAt(n int) Token {
	if c.pos+n >= len(c.toks) {
		return c.toks[len(c.toks)-1]
	}
	return c.toks[c.pos+n]
}

// Next consumes and returns the current token. EOF is never consumed.
func (c *Cursor) Next() Token {
	t := c.toks[c.pos]
	if t.Kind != EOF {
		c.pos++
	}
	return t
}

// Pos returns the index of the current token.
func (c *Cursor) Pos() int {
	return c.pos
}

// AtEOF reports whether every token has been consumed.
func (c *Cursor) AtEOF() bool {
	return c.Peek().Kind == EOF
}

// Expect consumes the punctuation p or fails.
func (c *Cursor) Expect(p string) error {
	t := c.Peek()
	if !t.Is(p) {
		return errorf(t.Offset, "expected %q, found %s", p, t)
	}
	c.Next()
	return nil
}

// ExpectWord consumes the bare word w (case-insensitive) or fails.
func (c *Cursor) ExpectWord(w string) error {
	t := c.Peek()
	if !t.IsWord(w) {
		return errorf(t.Offset, "expected %s, found %s", strings.ToUpper(w), t)
	}
	c.Next()
	return nil
}

// Errorf builds a syntax error positioned at the current token.
func (c *Cursor) Errorf(format string, args ...any) error {
	return errorf(c.Peek().Offset, format, args...)
}

// ReadLiteral reads a string token plus an optional language tag or
// datatype. resolve expands prefixed datatype names; it may be nil.
func (c *Cursor) ReadLiteral(resolve func(Token) (string, error)) (ir.Term, error) {
	t := c.Next()
	if t.Kind != String {
		return ir.Term{}, errorf(t.Offset, "expected literal, found %s", t)
	}
	switch next := c.Peek(); next.Kind {
	case LangTag:
		c.Next()
		return ir.LangLiteral(t.Value, next.Value), nil
	case DatatypeMark:
		c.Next()
		dt := c.Next()
		switch {
		case dt.Kind == IRIRef:
			return ir.TypedLiteral(t.Value, dt.Value), nil
		case dt.Kind == PName && resolve != nil:
			iri, err := resolve(dt)
			if err != nil {
				return ir.Term{}, err
			}
			return ir.TypedLiteral(t.Value, iri), nil
		default:
			return ir.Term{}, errorf(dt.Offset, "expected datatype IRI, found %s", dt)
		}
	}
	return ir.Literal(t.Value), nil
}

// ReadTerm reads one concrete N-Triples term: an IRI, a blank node or a
// literal when allowLiteral is set.
func (c *Cursor) ReadTerm(allowLiteral bool) (ir.Term, error) {
	t := c.Peek()
	switch t.Kind {
	case IRIRef:
		c.Next()
		return ir.IRI(t.Value), nil
	case BlankNode:
		c.Next()
		return ir.Blank(t.Value), nil
	case String:
		if allowLiteral {
			return c.ReadLiteral(nil)
		}
	}
	return ir.Term{}, errorf(t.Offset, "unexpected %s", t)
}

// ReadStatement reads "S P O [G] ." from the cursor. The graph term is
// optional; graph is used when it is absent. The final dot is optional
// when the statement is followed by a closing brace or EOF.
func (c *Cursor) ReadStatement(graph ir.Term) (ir.Quad, error) {
	s, err := c.ReadTerm(false)
	if err != nil {
		return ir.Quad{}, err
	}
	p := c.Peek()
	if p.Kind != IRIRef {
		return ir.Quad{}, errorf(p.Offset, "predicate must be an IRI, found %s", p)
	}
	c.Next()
	o, err := c.ReadTerm(true)
	if err != nil {
		return ir.Quad{}, err
	}

	q := ir.NewQuad(s, ir.IRI(p.Value), o, graph)
	if next := c.Peek(); next.Kind == IRIRef || next.Kind == BlankNode {
		g, err := c.ReadTerm(false)
		if err != nil {
			return ir.Quad{}, err
		}
		q.Graph = g
	}

	switch next := c.Peek(); {
	case next.Is("."):
		c.Next()
	case next.Is("}") || next.Kind == EOF:
	default:
		return ir.Quad{}, errorf(next.Offset, "expected '.', found %s", next)
	}
	return q, nil
}

// ParseNQuads parses an N-Quads (or N-Triples) document.
func ParseNQuads(src string) ([]ir.Quad, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	c := NewCursor(toks)
	var out []ir.Quad
	for !c.AtEOF() {
		q, err := c.ReadStatement(ir.Term{})
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// FormatNQuads renders quads as an N-Quads document in canonical order.
func FormatNQuads(quads []ir.Quad) string {
	sorted := ir.DedupQuads(quads)
	var b strings.Builder
	for _, q := range sorted {
		b.WriteString(q.String())
		b.WriteByte('\n')
	}
	return b.String()
}
