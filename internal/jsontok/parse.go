package jsontok

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Member is one key/value pair of an Object, in document order.
type Member struct {
	Key   string
	Value any
}

// Object is a decoded JSON object. Members keep their document order;
// duplicate keys are kept as written and Get returns the last one.
type Object struct {
	Members []Member
}

// Get returns the value of the last member named key.
func (o *Object) Get(key string) (any, bool) {
	for i := len(o.Members) - 1; i >= 0; i-- {
		if o.Members[i].Key == key {
			return o.Members[i].Value, true
		}
	}
	return nil, false
}

// ReadProperty lets expression paths walk into decoded documents.
func (o *Object) ReadProperty(name string) (any, bool) {
	v, _ := o.Get(name)
	return v, true
}

// Keys returns member keys in document order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.Members))
	for i, m := range o.Members {
		keys[i] = m.Key
	}
	return keys
}

// Map converts the object into a map, recursively. Nested objects become
// map[string]any as well.
func (o *Object) Map() map[string]any {
	out := make(map[string]any, len(o.Members))
	for _, m := range o.Members {
		out[m.Key] = plain(m.Value)
	}
	return out
}

func plain(v any) any {
	switch x := v.(type) {
	case *Object:
		return x.Map()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

// Parse decodes src into nil, bool, json.Number, string, *Object or []any.
// Empty input decodes to nil.
func Parse(src string) (any, error) {
	p := &parser{tok: NewTokenizer(src)}
	first, err := p.tok.Next()
	if err != nil {
		return nil, err
	}
	if first.Kind == None {
		return nil, nil
	}
	v, err := p.value(first)
	if err != nil {
		return nil, err
	}
	last, err := p.tok.Next()
	if err != nil {
		return nil, err
	}
	if last.Kind != None {
		return nil, &ParseError{Offset: last.Offset, Msg: "trailing data"}
	}
	return v, nil
}

type parser struct {
	tok *Tokenizer
}

func (p *parser) value(t Token) (any, error) {
	switch t.Kind {
	case Null:
		return nil, nil
	case True:
		return true, nil
	case False:
		return false, nil
	case Number:
		return json.Number(t.Text), nil
	case String:
		return unescapeAt(t)
	case ArrayStart:
		return p.array()
	case ObjectStart:
		return p.object()
	}
	return nil, &ParseError{Offset: t.Offset, Msg: fmt.Sprintf("unexpected %s", t.Kind)}
}

func (p *parser) array() ([]any, error) {
	out := []any{}
	for {
		t, err := p.tok.Next()
		if err != nil {
			return nil, err
		}
		if t.Kind == ArrayEnd {
			return out, nil
		}
		v, err := p.value(t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func (p *parser) object() (*Object, error) {
	obj := &Object{}
	for {
		t, err := p.tok.Next()
		if err != nil {
			return nil, err
		}
		if t.Kind == ObjectEnd {
			return obj, nil
		}
		key, err := unescapeAt(t)
		if err != nil {
			return nil, err
		}
		vt, err := p.tok.Next()
		if err != nil {
			return nil, err
		}
		v, err := p.value(vt)
		if err != nil {
			return nil, err
		}
		obj.Members = append(obj.Members, Member{Key: key, Value: v})
	}
}

func unescapeAt(t Token) (string, error) {
	s, err := Unescape(t.Text)
	if err != nil {
		pe := err.(*ParseError)
		pe.Offset += t.Offset + 1
		return "", pe
	}
	return s, nil
}

// Unescape resolves the backslash escapes of a raw string token. Offsets in
// a returned *ParseError are relative to raw.
func Unescape(raw string) (string, error) {
	if !strings.ContainsRune(raw, '\\') {
		if !utf8.ValidString(raw) {
			return "", &ParseError{Msg: "invalid UTF-8 in string"}
		}
		return raw, nil
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(raw) {
			return "", &ParseError{Offset: i, Msg: "dangling escape"}
		}
		i++
		switch raw[i] {
		case '"', '\\', '/':
			b.WriteByte(raw[i])
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			r, n, err := readRune(raw, i-1)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n - 2
		default:
			return "", &ParseError{Offset: i - 1, Msg: fmt.Sprintf("invalid escape '\\%c'", raw[i])}
		}
	}
	return b.String(), nil
}

// readRune decodes \uXXXX at raw[at:], joining a following low surrogate.
// It returns the rune and the number of bytes consumed.
func readRune(raw string, at int) (rune, int, error) {
	hi, err := hex4(raw, at)
	if err != nil {
		return 0, 0, err
	}
	if !utf16.IsSurrogate(hi) {
		return hi, 6, nil
	}
	if hi < 0xDC00 && at+12 <= len(raw) && raw[at+6] == '\\' && raw[at+7] == 'u' {
		lo, err := hex4(raw, at+6)
		if err == nil {
			if r := utf16.DecodeRune(hi, lo); r != utf8.RuneError {
				return r, 12, nil
			}
		}
	}
	return utf8.RuneError, 6, nil
}

func hex4(raw string, at int) (rune, error) {
	if at+6 > len(raw) {
		return 0, &ParseError{Offset: at, Msg: "truncated \\u escape"}
	}
	n, err := strconv.ParseUint(raw[at+2:at+6], 16, 32)
	if err != nil {
		return 0, &ParseError{Offset: at, Msg: fmt.Sprintf("invalid \\u escape %q", raw[at:at+6])}
	}
	return rune(n), nil
}
