package jsontok

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/unicode/norm"
)

// Normalize rebuilds src from its tokens with insignificant whitespace
// removed. Strings keep their escapes as written and keywords are lowered.
func Normalize(src string) (string, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return "", err
	}

	type frame struct {
		object bool
		n      int
	}
	var (
		b     strings.Builder
		stack []frame
	)
	// separator writes the comma or colon owed before the next token.
	separator := func() {
		if len(stack) == 0 {
			return
		}
		top := &stack[len(stack)-1]
		switch {
		case top.object && top.n%2 == 1:
			b.WriteByte(':')
		case top.n > 0:
			b.WriteByte(',')
		}
		top.n++
	}

	for _, t := range tokens {
		switch t.Kind {
		case ObjectEnd, ArrayEnd:
			stack = stack[:len(stack)-1]
			if t.Kind == ObjectEnd {
				b.WriteByte('}')
			} else {
				b.WriteByte(']')
			}
			continue
		}
		separator()
		switch t.Kind {
		case ObjectStart:
			b.WriteByte('{')
			stack = append(stack, frame{object: true})
		case ArrayStart:
			b.WriteByte('[')
			stack = append(stack, frame{})
		case String:
			b.WriteByte('"')
			b.WriteString(t.Text)
			b.WriteByte('"')
		case Number:
			b.WriteString(t.Text)
		default:
			b.WriteString(strings.ToLower(t.Kind.String()))
		}
	}
	return b.String(), nil
}

// Canonical renders a decoded value in a canonical form:
//   - object keys sorted by UTF-16 code units, last duplicate wins
//   - strings NFC normalized, only quote, backslash and control
//     characters escaped
//   - numbers reduced to their shortest decimal form (1.10 and 1.1 render
//     the same)
//
// Two documents with equal structure and values render identically.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case string:
		writeCanonicalString(buf, val)
	case json.Number:
		s, err := canonicalNumber(string(val))
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("non-finite number %v has no JSON form", val)
		}
		s, err := canonicalNumber(strconv.FormatFloat(val, 'g', -1, 64))
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case *Object:
		members := make(map[string]any, len(val.Members))
		for _, m := range val.Members {
			members[m.Key] = m.Value
		}
		return writeCanonicalObject(buf, members)
	case map[string]any:
		return writeCanonicalObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonicalString(buf, k)
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("object[%q]: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

const hexDigits = "0123456789abcdef"

// writeCanonicalString escapes only what JSON requires. HTML characters and
// U+2028/U+2029 are written as is.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c == '\b':
			buf.WriteString(`\b`)
		case c == '\f':
			buf.WriteString(`\f`)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\r':
			buf.WriteString(`\r`)
		case c == '\t':
			buf.WriteString(`\t`)
		case c < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xF])
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
}

// compareUTF16 orders strings by UTF-16 code units rather than UTF-8 bytes.
// The two differ for supplementary characters versus U+E000..U+FFFF.
func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

func canonicalNumber(s string) (string, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("number %q: %w", s, err)
	}
	d.Reduce(d)
	if d.IsZero() {
		return "0", nil
	}
	// Small positive exponents read better without scientific notation.
	if d.Exponent > 0 && d.NumDigits()+int64(d.Exponent) <= 21 {
		return d.Text('f'), nil
	}
	return d.Text('G'), nil
}
