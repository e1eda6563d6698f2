package jsontok

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/roach88/ormql/internal/value"
)

// Document is the value of a JSON column. It keeps the raw text; equality
// compares the decoded structure.
type Document struct {
	raw string
}

// NewDocument validates raw and wraps it.
func NewDocument(raw string) (Document, error) {
	if _, err := Tokenize(raw); err != nil {
		return Document{}, err
	}
	return Document{raw: raw}, nil
}

// MustDocument is NewDocument for literals known to be valid.
func MustDocument(raw string) Document {
	d, err := NewDocument(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Document) String() string { return d.raw }

// Decode parses the document. See Parse for the result types.
func (d Document) Decode() (any, error) { return Parse(d.raw) }

// EqualTo reports whether other holds the same JSON structure. Object member
// order and insignificant whitespace are ignored and numbers compare by
// value. Strings and byte slices are parsed as documents.
func (d Document) EqualTo(other any) bool {
	var raw string
	switch o := other.(type) {
	case Document:
		raw = o.raw
	case *Document:
		if o == nil {
			return false
		}
		raw = o.raw
	case string:
		raw = o
	case []byte:
		raw = string(o)
	default:
		return false
	}
	a, err := d.Decode()
	if err != nil {
		return false
	}
	b, err := Parse(raw)
	if err != nil {
		return false
	}
	return equalJSON(a, b)
}

func equalJSON(a, b any) bool {
	switch x := a.(type) {
	case *Object:
		y, ok := b.(*Object)
		if !ok {
			return false
		}
		xm, ym := lastMembers(x), lastMembers(y)
		if len(xm) != len(ym) {
			return false
		}
		for k, xv := range xm {
			yv, ok := ym[k]
			if !ok || !equalJSON(xv, yv) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equalJSON(x[i], y[i]) {
				return false
			}
		}
		return true
	case json.Number:
		if _, ok := b.(json.Number); !ok {
			return false
		}
		return value.Equal(x, b)
	}
	return a == b
}

func lastMembers(o *Object) map[string]any {
	m := make(map[string]any, len(o.Members))
	for _, mem := range o.Members {
		m[mem.Key] = mem.Value
	}
	return m
}

// Value implements driver.Valuer.
func (d Document) Value() (driver.Value, error) {
	return d.raw, nil
}

// Scan implements sql.Scanner.
func (d *Document) Scan(src any) error {
	var raw string
	switch s := src.(type) {
	case nil:
		d.raw = "null"
		return nil
	case string:
		raw = s
	case []byte:
		raw = string(s)
	default:
		return fmt.Errorf("scan %T into Document", src)
	}
	doc, err := NewDocument(raw)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// MarshalJSON writes the raw document.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.raw == "" {
		return []byte("null"), nil
	}
	return []byte(d.raw), nil
}
