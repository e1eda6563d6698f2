// Package jsontok is a small incremental JSON tokenizer and the consumer
// built on it.
//
// The tokenizer produces a flat token stream. Whitespace, commas and colons
// are consumed and checked for structure but never returned. Keywords are
// matched case-insensitively. String tokens carry their raw text with
// backslash escapes left unresolved; Parse resolves them.
//
// Malformed input aborts the parse with a *ParseError. There is no partial
// result.
package jsontok

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a token type.
type Kind int

const (
	// None marks the end of input.
	None Kind = iota
	Null
	True
	False
	Number
	String
	ObjectStart
	ObjectEnd
	ArrayStart
	ArrayEnd
)

var kindNames = [...]string{
	None:        "NONE",
	Null:        "NULL",
	True:        "TRUE",
	False:       "FALSE",
	Number:      "NUMBER",
	String:      "STRING",
	ObjectStart: "OBJECT_START",
	ObjectEnd:   "OBJECT_END",
	ArrayStart:  "ARRAY_START",
	ArrayEnd:    "ARRAY_END",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical element. Text holds the literal for Number and the
// raw, still escaped, contents for String.
type Token struct {
	Kind   Kind
	Text   string
	Offset int
}

func (t Token) String() string {
	switch t.Kind {
	case Number, String:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Text)
	}
	return t.Kind.String()
}

// ParseError reports malformed JSON.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json: %s at offset %d", e.Msg, e.Offset)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

type expect int

const (
	wantValue expect = iota
	wantValueOrEnd
	wantKey
	wantKeyOrEnd
	wantColon
	wantCommaOrEnd
	wantEOF
)

// Tokenizer reads tokens from a JSON text one at a time.
type Tokenizer struct {
	src   string
	pos   int
	stack []bool // true for object, false for array
	want  expect
	err   error
}

// NewTokenizer returns a tokenizer over src.
func NewTokenizer(src string) *Tokenizer {
	return &Tokenizer{src: src}
}

// Offset returns the byte offset of the next unread character.
func (t *Tokenizer) Offset() int { return t.pos }

// Next returns the next token. At the end of a complete document it returns
// a None token. After an error every call returns the same error.
func (t *Tokenizer) Next() (Token, error) {
	if t.err != nil {
		return Token{}, t.err
	}
	tok, err := t.next()
	if err != nil {
		t.err = err
	}
	return tok, err
}

func (t *Tokenizer) fail(offset int, format string, args ...any) (Token, error) {
	return Token{}, &ParseError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (t *Tokenizer) next() (Token, error) {
	for {
		t.skipSpace()
		if t.pos >= len(t.src) {
			return t.atEOF()
		}
		c := t.src[t.pos]

		switch t.want {
		case wantEOF:
			return t.fail(t.pos, "unexpected %q after end of document", c)

		case wantCommaOrEnd:
			switch {
			case c == ',':
				t.pos++
				if t.inObject() {
					t.want = wantKey
				} else {
					t.want = wantValue
				}
				continue
			case c == '}' || c == ']':
				return t.close(c)
			}
			return t.fail(t.pos, "expected ',' or end of %s, got %q", t.containerName(), c)

		case wantColon:
			if c != ':' {
				return t.fail(t.pos, "expected ':' after object key, got %q", c)
			}
			t.pos++
			t.want = wantValue
			continue

		case wantKey, wantKeyOrEnd:
			if c == '}' && t.want == wantKeyOrEnd {
				return t.close(c)
			}
			if c != '"' {
				return t.fail(t.pos, "expected object key, got %q", c)
			}
			tok, err := t.scanString()
			if err != nil {
				return tok, err
			}
			t.want = wantColon
			return tok, nil

		case wantValue, wantValueOrEnd:
			if c == ']' && t.want == wantValueOrEnd {
				return t.close(c)
			}
			return t.scanValue(c)
		}
	}
}

func (t *Tokenizer) atEOF() (Token, error) {
	switch {
	case len(t.stack) > 0:
		return t.fail(t.pos, "unterminated %s", t.containerName())
	case t.want == wantEOF || strings.TrimSpace(t.src) == "":
		t.want = wantEOF
		return Token{Kind: None, Offset: t.pos}, nil
	}
	return t.fail(t.pos, "unexpected end of input")
}

func (t *Tokenizer) inObject() bool {
	return len(t.stack) > 0 && t.stack[len(t.stack)-1]
}

func (t *Tokenizer) containerName() string {
	if t.inObject() {
		return "object"
	}
	return "array"
}

func (t *Tokenizer) skipSpace() {
	for t.pos < len(t.src) {
		switch t.src[t.pos] {
		case ' ', '\t', '\n', '\r':
			t.pos++
		default:
			return
		}
	}
}

func (t *Tokenizer) valueDone() {
	if len(t.stack) == 0 {
		t.want = wantEOF
	} else {
		t.want = wantCommaOrEnd
	}
}

func (t *Tokenizer) close(c byte) (Token, error) {
	object := c == '}'
	if len(t.stack) == 0 || t.inObject() != object {
		return t.fail(t.pos, "unexpected %q", c)
	}
	off := t.pos
	t.pos++
	t.stack = t.stack[:len(t.stack)-1]
	t.valueDone()
	if object {
		return Token{Kind: ObjectEnd, Offset: off}, nil
	}
	return Token{Kind: ArrayEnd, Offset: off}, nil
}

func (t *Tokenizer) scanValue(c byte) (Token, error) {
	off := t.pos
	switch {
	case c == '{':
		t.pos++
		t.stack = append(t.stack, true)
		t.want = wantKeyOrEnd
		return Token{Kind: ObjectStart, Offset: off}, nil
	case c == '[':
		t.pos++
		t.stack = append(t.stack, false)
		t.want = wantValueOrEnd
		return Token{Kind: ArrayStart, Offset: off}, nil
	case c == '"':
		tok, err := t.scanString()
		if err != nil {
			return tok, err
		}
		t.valueDone()
		return tok, nil
	case c == '-' || (c >= '0' && c <= '9'):
		tok, err := t.scanNumber()
		if err != nil {
			return tok, err
		}
		t.valueDone()
		return tok, nil
	case isLetter(c):
		tok, err := t.scanKeyword()
		if err != nil {
			return tok, err
		}
		t.valueDone()
		return tok, nil
	}
	return t.fail(off, "unexpected %q", c)
}

// scanString reads a quoted string. The token text excludes the quotes and
// keeps escapes as written.
func (t *Tokenizer) scanString() (Token, error) {
	start := t.pos
	i := start + 1
	for i < len(t.src) {
		switch t.src[i] {
		case '\\':
			i += 2
			continue
		case '"':
			t.pos = i + 1
			return Token{Kind: String, Text: t.src[start+1 : i], Offset: start}, nil
		}
		i++
	}
	return t.fail(start, "unterminated string")
}

// scanNumber reads -?digits(.digits)?([eE][+-]?digits)?
func (t *Tokenizer) scanNumber() (Token, error) {
	start := t.pos
	i := start
	digits := func() int {
		n := 0
		for i < len(t.src) && t.src[i] >= '0' && t.src[i] <= '9' {
			i++
			n++
		}
		return n
	}

	if t.src[i] == '-' {
		i++
	}
	if digits() == 0 {
		return t.fail(start, "malformed number")
	}
	if i < len(t.src) && t.src[i] == '.' {
		i++
		if digits() == 0 {
			return t.fail(start, "malformed number: digits expected after '.'")
		}
	}
	if i < len(t.src) && (t.src[i] == 'e' || t.src[i] == 'E') {
		i++
		if i < len(t.src) && (t.src[i] == '+' || t.src[i] == '-') {
			i++
		}
		if digits() == 0 {
			return t.fail(start, "malformed number: digits expected in exponent")
		}
	}
	if i < len(t.src) && !isDelimiter(t.src[i]) {
		return t.fail(i, "unexpected %q in number", t.src[i])
	}
	t.pos = i
	return Token{Kind: Number, Text: t.src[start:i], Offset: start}, nil
}

func (t *Tokenizer) scanKeyword() (Token, error) {
	start := t.pos
	i := start
	for i < len(t.src) && isLetter(t.src[i]) {
		i++
	}
	word := t.src[start:i]
	var kind Kind
	switch strings.ToLower(word) {
	case "null":
		kind = Null
	case "true":
		kind = True
	case "false":
		kind = False
	default:
		return t.fail(start, "unrecognized bareword %q", word)
	}
	if i < len(t.src) && !isDelimiter(t.src[i]) {
		return t.fail(i, "unexpected %q after %s", t.src[i], word)
	}
	t.pos = i
	return Token{Kind: kind, Text: word, Offset: start}, nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ',', ':', ']', '}':
		return true
	}
	return false
}

// Tokenize returns every token of src, excluding the final None.
func Tokenize(src string) ([]Token, error) {
	t := NewTokenizer(src)
	var out []Token
	for {
		tok, err := t.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == None {
			return out, nil
		}
		out = append(out, tok)
	}
}
