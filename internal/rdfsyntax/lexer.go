// Package rdfsyntax tokenizes the RDF surface syntaxes used by the engine:
// N-Quads statements, SPARQL Update DATA blocks and SELECT queries.
//
// The lexer is a flat loop over the input. Nothing in this package
// recurses, so deeply nested or very large inputs cannot exhaust the
// stack.
package rdfsyntax

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies a token class.
type Kind int

const (
	EOF Kind = iota
	IRIRef
	PName
	Var
	String
	LangTag
	DatatypeMark
	BlankNode
	Number
	Word
	Punct
)

var kindNames = [...]string{
	EOF:          "end of input",
	IRIRef:       "IRI",
	PName:        "prefixed name",
	Var:          "variable",
	String:       "string",
	LangTag:      "language tag",
	DatatypeMark: "'^^'",
	BlankNode:    "blank node",
	Number:       "number",
	Word:         "word",
	Punct:        "punctuation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Token is one lexical unit. Value holds the decoded content: IRIs without
// angle brackets, strings unescaped, variables without the ? or $ sigil.
type Token struct {
	Kind   Kind
	Value  string
	Offset int
}

// Is reports whether the token is the punctuation p.
func (t Token) Is(p string) bool {
	return t.Kind == Punct && t.Value == p
}

// IsWord reports whether the token is the bare word w, case-insensitively.
func (t Token) IsWord(w string) bool {
	return t.Kind == Word && strings.EqualFold(t.Value, w)
}

func (t Token) String() string {
	if t.Kind == EOF {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Value)
}

// SyntaxError reports a lexing or parsing failure at a byte offset.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Message)
}

func errorf(offset int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}

// Tokenize splits src into tokens. The returned slice always ends with an
// EOF token.
func Tokenize(src string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '<':
			tok, next, err := lexIRI(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case c == '"' || c == '\'':
			tok, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case c == '?' || c == '$':
			j := i + 1
			for j < len(src) && isNameByte(src[j]) {
				j++
			}
			for j > i+1 && src[j-1] == '.' {
				j--
			}
			if j == i+1 {
				return nil, errorf(i, "empty variable name")
			}
			toks = append(toks, Token{Kind: Var, Value: src[i+1 : j], Offset: i})
			i = j
		case c == '@':
			j := i + 1
			for j < len(src) && (isAlnum(src[j]) || src[j] == '-') {
				j++
			}
			if j == i+1 {
				return nil, errorf(i, "empty language tag")
			}
			toks = append(toks, Token{Kind: LangTag, Value: src[i+1 : j], Offset: i})
			i = j
		case c == '^':
			if i+1 >= len(src) || src[i+1] != '^' {
				return nil, errorf(i, "expected '^^'")
			}
			toks = append(toks, Token{Kind: DatatypeMark, Value: "^^", Offset: i})
			i += 2
		case c == '_' && i+1 < len(src) && src[i+1] == ':':
			j := i + 2
			for j < len(src) && isNameByte(src[j]) {
				j++
			}
			for j > i+2 && src[j-1] == '.' {
				j--
			}
			if j == i+2 {
				return nil, errorf(i, "empty blank node label")
			}
			toks = append(toks, Token{Kind: BlankNode, Value: src[i+2 : j], Offset: i})
			i = j
		case isDigit(c) || ((c == '+' || c == '-') && i+1 < len(src) && isDigit(src[i+1])):
			j := lexNumber(src, i)
			toks = append(toks, Token{Kind: Number, Value: src[i:j], Offset: i})
			i = j
		case strings.IndexByte("{}.;,*()=", c) >= 0:
			toks = append(toks, Token{Kind: Punct, Value: string(c), Offset: i})
			i++
		case isNameStart(src, i):
			j := i
			colon := false
			for j < len(src) {
				if src[j] == ':' {
					colon = true
					j++
					continue
				}
				if isNameByte(src[j]) {
					j++
					continue
				}
				r, size := utf8.DecodeRuneInString(src[j:])
				if r >= utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
					j += size
					continue
				}
				break
			}
			// A trailing dot terminates the statement, it is not part of the name.
			for j > i+1 && src[j-1] == '.' {
				j--
			}
			kind := Word
			if colon {
				kind = PName
			}
			toks = append(toks, Token{Kind: kind, Value: src[i:j], Offset: i})
			i = j
		default:
			r, _ := utf8.DecodeRuneInString(src[i:])
			return nil, errorf(i, "unexpected character %q", r)
		}
	}
	toks = append(toks, Token{Kind: EOF, Offset: len(src)})
	return toks, nil
}

func lexIRI(src string, start int) (Token, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == '>':
			return Token{Kind: IRIRef, Value: b.String(), Offset: start}, i + 1, nil
		case c == '\\':
			r, next, err := lexUnicodeEscape(src, i)
			if err != nil {
				return Token{}, 0, err
			}
			b.WriteRune(r)
			i = next
		case c == ' ' || c == '\n' || c == '\t' || c == '"' || c == '{' || c == '}':
			return Token{}, 0, errorf(i, "invalid character %q in IRI", c)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return Token{}, 0, errorf(start, "unterminated IRI")
}

func lexString(src string, start int) (Token, int, error) {
	quote := src[start]
	long := strings.HasPrefix(src[start:], strings.Repeat(string(quote), 3))
	i := start + 1
	if long {
		i = start + 3
	}

	var b strings.Builder
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote && !long:
			return Token{Kind: String, Value: b.String(), Offset: start}, i + 1, nil
		case c == quote && long && strings.HasPrefix(src[i:], strings.Repeat(string(quote), 3)):
			return Token{Kind: String, Value: b.String(), Offset: start}, i + 3, nil
		case c == '\\':
			if i+1 >= len(src) {
				return Token{}, 0, errorf(i, "dangling escape")
			}
			switch e := src[i+1]; e {
			case 't':
				b.WriteByte('\t')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '"', '\'', '\\':
				b.WriteByte(e)
			case 'u', 'U':
				r, next, err := lexUnicodeEscape(src, i)
				if err != nil {
					return Token{}, 0, err
				}
				b.WriteRune(r)
				i = next
				continue
			default:
				return Token{}, 0, errorf(i, "invalid escape \\%c", e)
			}
			i += 2
		case (c == '\n' || c == '\r') && !long:
			return Token{}, 0, errorf(i, "newline in string literal")
		default:
			b.WriteByte(c)
			i++
		}
	}
	return Token{}, 0, errorf(start, "unterminated string literal")
}

// lexUnicodeEscape decodes \uXXXX or \UXXXXXXXX starting at src[i] == '\\'.
func lexUnicodeEscape(src string, i int) (rune, int, error) {
	if i+1 >= len(src) {
		return 0, 0, errorf(i, "dangling escape")
	}
	width := 0
	switch src[i+1] {
	case 'u':
		width = 4
	case 'U':
		width = 8
	default:
		return 0, 0, errorf(i, "invalid escape \\%c", src[i+1])
	}
	end := i + 2 + width
	if end > len(src) {
		return 0, 0, errorf(i, "truncated unicode escape")
	}
	n, err := strconv.ParseUint(src[i+2:end], 16, 32)
	if err != nil {
		return 0, 0, errorf(i, "invalid unicode escape %q", src[i:end])
	}
	return rune(n), end, nil
}

func lexNumber(src string, i int) int {
	j := i
	if src[j] == '+' || src[j] == '-' {
		j++
	}
	for j < len(src) && isDigit(src[j]) {
		j++
	}
	if j+1 < len(src) && src[j] == '.' && isDigit(src[j+1]) {
		j++
		for j < len(src) && isDigit(src[j]) {
			j++
		}
	}
	if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && isDigit(src[k]) {
			for k < len(src) && isDigit(src[k]) {
				k++
			}
			j = k
		}
	}
	return j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isAlnum(c) || c == '_' || c == '-' || c == '.'
}

func isNameStart(src string, i int) bool {
	c := src[i]
	if isAlnum(c) || c == '_' || c == ':' {
		return true
	}
	r, _ := utf8.DecodeRuneInString(src[i:])
	return r >= utf8.RuneSelf && unicode.IsLetter(r)
}
