// Package access reads properties from in-memory object graphs by name or by
// dot-separated path.
//
// Supported targets:
//   - values implementing PropertyReader (and ColumnReader for db: paths)
//   - maps with string keys
//   - structs, by `orm:"name"` tag or case-insensitive field name
//   - pointers and interfaces to any of the above
//
// A slice or array met in the middle of a path is a to-many relationship: the
// remainder of the path is applied to every element and the results are
// flattened into a single []any.
package access

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNoSuchProperty is returned when a struct has no field for a name.
var ErrNoSuchProperty = errors.New("no such property")

// DBPrefix marks a path that names a column instead of an object property.
const DBPrefix = "db:"

// ObjPrefix optionally marks an object property path.
const ObjPrefix = "obj:"

// OuterMarker suffixes a relationship segment that should be joined with an
// outer join. It has no effect on in-memory access.
const OuterMarker = "+"

// PropertyReader is implemented by objects that resolve their own properties.
type PropertyReader interface {
	ReadProperty(name string) (any, bool)
}

// ColumnReader is implemented by objects that keep the raw row they were
// read from.
type ColumnReader interface {
	ReadColumn(name string) (any, bool)
}

// Property reads a single named property of obj. A nil obj yields nil.
// Missing map keys yield nil; missing struct fields are an error.
func Property(obj any, name string) (any, error) {
	if obj == nil {
		return nil, nil
	}
	if r, ok := obj.(PropertyReader); ok {
		v, found := r.ReadProperty(name)
		if !found {
			return nil, fmt.Errorf("%w: %q on %T", ErrNoSuchProperty, name, obj)
		}
		return v, nil
	}
	if m, ok := obj.(map[string]any); ok {
		return m[name], nil
	}

	rv := indirect(reflect.ValueOf(obj))
	if !rv.IsValid() {
		return nil, nil
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, nil
		}
		return valueOf(mv), nil
	case reflect.Struct:
		if f, ok := structField(rv, name); ok {
			return valueOf(f), nil
		}
	}
	return nil, fmt.Errorf("%w: %q on %T", ErrNoSuchProperty, name, obj)
}

// Column reads a raw column value. Objects that are not ColumnReaders are
// treated as maps keyed by column name.
func Column(obj any, column string) (any, error) {
	if obj == nil {
		return nil, nil
	}
	if r, ok := obj.(ColumnReader); ok {
		v, _ := r.ReadColumn(column)
		return v, nil
	}
	return Property(obj, column)
}

// Path walks a dot-separated path from obj.
//
// "db:" paths read a column of obj directly. "+" outer join markers and the
// "obj:" prefix are ignored.
func Path(obj any, path string) (any, error) {
	if col, ok := strings.CutPrefix(path, DBPrefix); ok {
		return Column(obj, col)
	}
	return walk(obj, Segments(path))
}

// Segments splits an object path into property names, dropping the obj:
// prefix and outer join markers.
func Segments(path string) []string {
	path = strings.TrimPrefix(path, ObjPrefix)
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, OuterMarker)
	}
	return parts
}

// IsToMany reports whether v is a collection produced by a to-many path.
func IsToMany(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// Elements returns the members of a to-many collection.
func Elements(v any) []any {
	if items, ok := v.([]any); ok {
		return items
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = valueOf(rv.Index(i))
	}
	return out
}

func walk(cur any, segs []string) (any, error) {
	for i, seg := range segs {
		if cur == nil {
			return nil, nil
		}
		if IsToMany(cur) {
			return flatten(Elements(cur), segs[i:])
		}
		next, err := Property(cur, seg)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func flatten(items []any, rest []string) (any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := walk(item, rest)
		if err != nil {
			return nil, err
		}
		if IsToMany(v) {
			out = append(out, Elements(v)...)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("orm"), ",")
		if tag == "-" {
			continue
		}
		if tag == name {
			return rv.Field(i), true
		}
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.IsExported() && sf.Tag.Get("orm") == "" && strings.EqualFold(sf.Name, name) {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func valueOf(rv reflect.Value) any {
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return nil
	}
	return rv.Interface()
}
