// Package delta decodes, inverts and applies the update queries that
// provenance snapshots carry.
//
// An update query is a sequence of DELETE DATA and INSERT DATA blocks, each
// holding triples either directly or inside GRAPH <g> { ... } groups:
//
//	DELETE DATA { GRAPH <g> { <s> <p> "o" . } } ;
//	INSERT DATA { GRAPH <g> { <s> <p> "o2" . } }
//
// Parsing runs in two passes. The structural pass splits the token stream
// into statements without decoding them. Statements are then decoded in
// batches; a failing batch is retried with halved batch sizes until the
// minimum size, which pinpoints the malformed statement. Both passes are
// flat loops.
package delta

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/rdfsyntax"
)

const (
	// DefaultBatchSize is the number of statements decoded per batch.
	DefaultBatchSize = 90

	// DefaultMinBatchSize is the batch size at which retries stop.
	DefaultMinBatchSize = 1
)

type opKind int

const (
	opDelete opKind = iota
	opInsert
)

// statement is the token range [start, end) of one triple.
type statement struct {
	op    opKind
	graph ir.Term
	start int
	end   int
}

// Parser decodes update queries. A Parser is immutable after construction
// and safe for concurrent use.
type Parser struct {
	batchSize    int
	minBatchSize int
	logger       *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithBatchSize sets the number of statements decoded per batch.
// Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithMinBatchSize sets the batch size at which retries stop.
// Values below 1 are ignored.
func WithMinBatchSize(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.minBatchSize = n
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		batchSize:    DefaultBatchSize,
		minBatchSize: DefaultMinBatchSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.minBatchSize > p.batchSize {
		p.minBatchSize = p.batchSize
	}
	return p
}

// BatchSize returns the configured batch size.
func (p *Parser) BatchSize() int {
	return p.batchSize
}

// Parse decodes an update query into a Delta.
func (p *Parser) Parse(text string) (ir.Delta, error) {
	toks, err := rdfsyntax.Tokenize(text)
	if err != nil {
		return ir.Delta{}, structural("cannot tokenize update query", err)
	}

	stmts, err := split(toks)
	if err != nil {
		return ir.Delta{}, err
	}

	quads, err := p.decode(toks, stmts)
	if err != nil {
		return ir.Delta{}, err
	}

	var d ir.Delta
	for i, q := range quads {
		if stmts[i].op == opInsert {
			d.Inserted = append(d.Inserted, q)
		} else {
			d.Deleted = append(d.Deleted, q)
		}
	}
	d.Inserted = ir.DedupQuads(d.Inserted)
	d.Deleted = ir.DedupQuads(d.Deleted)
	return d, nil
}

// ParseSnapshot is like Parse but names the snapshot in any error.
func (p *Parser) ParseSnapshot(snapshotID, text string) (ir.Delta, error) {
	d, err := p.Parse(text)
	if err != nil {
		var me *MalformedDeltaError
		if errors.As(err, &me) {
			me.Snapshot = snapshotID
		}
		return ir.Delta{}, err
	}
	return d, nil
}

// split is the structural pass: it walks the DATA blocks and records the
// token range of every statement.
func split(toks []rdfsyntax.Token) ([]statement, error) {
	c := rdfsyntax.NewCursor(toks)
	var stmts []statement
	sawBlock := false

	for !c.AtEOF() {
		t := c.Peek()
		if t.Is(";") {
			c.Next()
			continue
		}

		var op opKind
		switch {
		case t.IsWord("INSERT"):
			op = opInsert
		case t.IsWord("DELETE"):
			op = opDelete
		default:
			return nil, structural("expected INSERT DATA or DELETE DATA", c.Errorf("unexpected %s", t))
		}
		c.Next()
		if err := c.ExpectWord("DATA"); err != nil {
			return nil, structural("expected DATA keyword", err)
		}
		if err := c.Expect("{"); err != nil {
			return nil, structural("expected block opening", err)
		}
		sawBlock = true

		var graph ir.Term
		inGraph := false
	block:
		for {
			t := c.Peek()
			switch {
			case t.Kind == rdfsyntax.EOF:
				return nil, structural("unterminated DATA block", nil)
			case t.Is("}"):
				c.Next()
				if inGraph {
					inGraph = false
					graph = ir.Term{}
					continue
				}
				break block
			case t.IsWord("GRAPH"):
				if inGraph {
					return nil, structural("nested GRAPH group", c.Errorf("unexpected GRAPH"))
				}
				c.Next()
				g, err := c.ReadTerm(false)
				if err != nil {
					return nil, structural("invalid graph name", err)
				}
				if err := c.Expect("{"); err != nil {
					return nil, structural("expected graph group opening", err)
				}
				graph = g
				inGraph = true
			case t.Is("."):
				c.Next()
			default:
				start := c.Pos()
				for {
					n := c.Peek()
					if n.Is(".") || n.Is("}") || n.Kind == rdfsyntax.EOF {
						break
					}
					c.Next()
				}
				stmts = append(stmts, statement{op: op, graph: graph, start: start, end: c.Pos()})
			}
		}
	}

	if !sawBlock {
		return nil, structural("no INSERT DATA or DELETE DATA block", nil)
	}
	return stmts, nil
}

type span struct {
	start, end int
}

// decode turns every statement into a quad, batch by batch.
// The result is indexed like stmts.
func (p *Parser) decode(toks []rdfsyntax.Token, stmts []statement) ([]ir.Quad, error) {
	out := make([]ir.Quad, len(stmts))

	queue := chunk(span{0, len(stmts)}, p.batchSize)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		quads, failed, err := decodeBatch(toks, stmts[s.start:s.end])
		if err == nil {
			copy(out[s.start:s.end], quads)
			continue
		}

		size := s.end - s.start
		if size <= p.minBatchSize {
			return nil, &MalformedDeltaError{
				Statement: s.start + failed,
				Reason:    "cannot decode statement",
				Err:       err,
			}
		}

		half := max(size/2, p.minBatchSize)
		p.logger.Debug("retrying delta batch",
			"batch_start", s.start,
			"batch_size", size,
			"retry_size", half,
		)
		queue = append(chunk(s, half), queue...)
	}
	return out, nil
}

// chunk splits s into consecutive spans of at most size statements.
func chunk(s span, size int) []span {
	var out []span
	for start := s.start; start < s.end; start += size {
		out = append(out, span{start, min(start+size, s.end)})
	}
	return out
}

// decodeBatch decodes statements in order. On failure it returns the
// offset of the failing statement within the batch.
func decodeBatch(toks []rdfsyntax.Token, batch []statement) ([]ir.Quad, int, error) {
	out := make([]ir.Quad, 0, len(batch))
	for i, st := range batch {
		sub := slices.Clone(toks[st.start:st.end])
		sub = append(sub, rdfsyntax.Token{Kind: rdfsyntax.EOF, Offset: toks[st.end].Offset})

		c := rdfsyntax.NewCursor(sub)
		q, err := c.ReadStatement(st.graph)
		if err != nil {
			return nil, i, err
		}
		if !c.AtEOF() {
			return nil, i, c.Errorf("trailing tokens after statement")
		}
		out = append(out, q)
	}
	return out, 0, nil
}
