package ir

import (
	"strings"
)

// TermKind identifies the kind of an RDF term.
type TermKind uint8

const (
	// TermNone marks the zero Term: an unbound value or the default graph.
	TermNone TermKind = iota
	TermIRI
	TermLiteral
	TermBlank
)

// String returns a short name for the kind.
func (k TermKind) String() string {
	switch k {
	case TermIRI:
		return "iri"
	case TermLiteral:
		return "literal"
	case TermBlank:
		return "bnode"
	default:
		return "none"
	}
}

// XSDString is the implicit datatype of plain literals.
const XSDString = "http://www.w3.org/2001/XMLSchema#string"

// Term is an RDF term: IRI, literal or blank node.
//
// Literals keep their lexical form exactly as written. Datatype is empty
// for plain literals and language-tagged literals. Term is comparable and
// the zero value means "no term".
type Term struct {
	Kind     TermKind `json:"kind"`
	Value    string   `json:"value"`
	Datatype string   `json:"datatype,omitempty"`
	Lang     string   `json:"lang,omitempty"`
}

// IRI creates an IRI term.
func IRI(v string) Term {
	return Term{Kind: TermIRI, Value: v}
}

// Literal creates a plain literal.
func Literal(v string) Term {
	return Term{Kind: TermLiteral, Value: v}
}

// TypedLiteral creates a literal with a datatype IRI.
// xsd:string is folded into the plain form so both spellings compare equal.
func TypedLiteral(v, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: TermLiteral, Value: v, Datatype: datatype}
}

// LangLiteral creates a language-tagged literal. Tags are lowercased.
func LangLiteral(v, lang string) Term {
	return Term{Kind: TermLiteral, Value: v, Lang: strings.ToLower(lang)}
}

// Blank creates a blank node term with the given label.
func Blank(label string) Term {
	return Term{Kind: TermBlank, Value: label}
}

// IsZero reports whether t is the zero Term.
func (t Term) IsZero() bool {
	return t.Kind == TermNone
}

// IsIRI reports whether t is an IRI.
func (t Term) IsIRI() bool {
	return t.Kind == TermIRI
}

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool {
	return t.Kind == TermLiteral
}

// String renders t in N-Triples syntax. The zero Term renders as "".
func (t Term) String() string {
	switch t.Kind {
	case TermIRI:
		return "<" + t.Value + ">"
	case TermBlank:
		return "_:" + t.Value
	case TermLiteral:
		var b strings.Builder
		b.WriteByte('"')
		b.WriteString(EscapeLiteral(t.Value))
		b.WriteByte('"')
		if t.Lang != "" {
			b.WriteByte('@')
			b.WriteString(t.Lang)
		} else if t.Datatype != "" {
			b.WriteString("^^<")
			b.WriteString(t.Datatype)
			b.WriteByte('>')
		}
		return b.String()
	default:
		return ""
	}
}

// CompareTerms orders terms by kind, then value, datatype and language.
func CompareTerms(a, b Term) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if c := strings.Compare(a.Datatype, b.Datatype); c != 0 {
		return c
	}
	return strings.Compare(a.Lang, b.Lang)
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// EscapeLiteral escapes a lexical form for N-Triples output.
func EscapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
