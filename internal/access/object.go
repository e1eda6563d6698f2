package access

import (
	"fmt"
	"sort"
	"strings"
)

// Object is a generic persistent object: attribute and relationship values
// keyed by property name, plus the raw row it was read from.
type Object struct {
	Entity string
	Values map[string]any
	Row    map[string]any
}

// NewObject returns an empty object of the given entity.
func NewObject(entity string) *Object {
	return &Object{
		Entity: entity,
		Values: make(map[string]any),
		Row:    make(map[string]any),
	}
}

// ReadProperty implements PropertyReader. Unknown names read as nil, the way
// a faulted relationship with no target does.
func (o *Object) ReadProperty(name string) (any, bool) {
	return o.Values[name], true
}

// ReadColumn implements ColumnReader. Column names match case-insensitively.
func (o *Object) ReadColumn(name string) (any, bool) {
	if v, ok := o.Row[name]; ok {
		return v, true
	}
	for k, v := range o.Row {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// Set stores a property value and returns the object.
func (o *Object) Set(name string, v any) *Object {
	o.Values[name] = v
	return o
}

func (o *Object) String() string {
	keys := make([]string, 0, len(o.Values))
	for k := range o.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(o.Entity)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		switch v := o.Values[k].(type) {
		case *Object:
			fmt.Fprintf(&b, "%s: %s", k, v.Entity)
		case []any:
			fmt.Fprintf(&b, "%s: [%d]", k, len(v))
		default:
			fmt.Fprintf(&b, "%s: %v", k, v)
		}
	}
	b.WriteByte('}')
	return b.String()
}
