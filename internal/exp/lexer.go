package exp

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokParam
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokStar
	tokBang
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// is reports whether t is the identifier kw, case-insensitively.
func (t token) is(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += w
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case r == '*':
			toks = append(toks, token{tokStar, "*", i})
			i++
		case r == '=' || r == '<' || r == '>' || r == '!':
			op, n := lexOperator(src[i:])
			if op == "!" {
				toks = append(toks, token{tokBang, op, i})
			} else {
				toks = append(toks, token{tokOp, op, i})
			}
			i += n
		case r == '\'' || r == '"':
			s, n, err := lexString(src, i, byte(r))
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, s, i})
			i += n
		case r == '$':
			j := i + 1
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			if j == i+1 {
				return nil, &ParseError{Pos: i, Msg: "parameter name expected after '$'"}
			}
			toks = append(toks, token{tokParam, src[i+1 : j], i})
			i = j
		case r == '-' || (r >= '0' && r <= '9'):
			n := lexNumber(src[i:])
			if n == 0 {
				return nil, &ParseError{Pos: i, Msg: "malformed number"}
			}
			toks = append(toks, token{tokNumber, src[i : i+n], i})
			i += n
		case r == '_' || unicode.IsLetter(r):
			n := lexIdent(src[i:])
			toks = append(toks, token{tokIdent, src[i : i+n], i})
			i += n
		default:
			return nil, &ParseError{Pos: i, Msg: "unexpected character " + string(r)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func lexOperator(s string) (string, int) {
	if len(s) >= 2 {
		switch s[:2] {
		case "<=", ">=", "<>", "!=", "==":
			return s[:2], 2
		}
	}
	return s[:1], 1
}

// lexString scans a quoted literal. The quote character is escaped by
// doubling it.
func lexString(src string, start int, quote byte) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		if c == quote {
			if i+1 < len(src) && src[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return b.String(), i + 1 - start, nil
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, &ParseError{Pos: start, Msg: "unterminated string literal"}
}

// lexNumber returns the length of a number literal:
// -?digits(.digits)?([eE][+-]?digits)?
func lexNumber(s string) int {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digits := func() int {
		n := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			n++
		}
		return n
	}
	if digits() == 0 {
		return 0
	}
	if i < len(s) && s[i] == '.' {
		i++
		if digits() == 0 {
			return 0
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		if digits() == 0 {
			return 0
		}
	}
	return i
}

// lexIdent scans a path or keyword. Paths may contain dots, outer join
// markers and a db: or obj: prefix.
func lexIdent(s string) int {
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isIdentByte(c), c == '.', c == '+':
			i++
		case c == ':' && (strings.EqualFold(s[:i], "db") || strings.EqualFold(s[:i], "obj")):
			i++
		case c >= utf8.RuneSelf:
			r, w := utf8.DecodeRuneInString(s[i:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return i
			}
			i += w
		default:
			return i
		}
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
