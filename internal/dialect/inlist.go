package dialect

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/ormql/internal/sqltree"
)

// ErrUnsupportedInList is returned when an IN list is bound to something
// other than a slice or array.
var ErrUnsupportedInList = errors.New("IN list value is not a slice or array")

// batchInLists splits IN lists longer than InListLimit. x IN (a..z)
// becomes (x IN (a..) OR x IN (..z)); NOT IN slices are joined with AND.
// Every slice gets its own copy of the left operand.
func (d *Dialect) batchInLists(n sqltree.Node) (sqltree.Node, error) {
	var err error
	out := sqltree.Transform(n, func(n sqltree.Node) sqltree.Node {
		in, ok := n.(*sqltree.InList)
		if !ok || err != nil {
			return n
		}
		rv := reflect.ValueOf(in.Values)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			err = fmt.Errorf("%w: %T", ErrUnsupportedInList, in.Values)
			return n
		}
		size := d.InListLimit
		if size <= 0 || rv.Len() <= size {
			return n
		}

		var parts []sqltree.Node
		for i := 0; i < rv.Len(); i += size {
			parts = append(parts, &sqltree.InList{
				Not:    in.Not,
				Expr:   sqltree.Clone(in.Expr),
				Values: slice(rv, i, min(i+size, rv.Len())),
			})
		}
		op := "OR"
		if in.Not {
			op = "AND"
		}
		return &sqltree.Paren{Expr: &sqltree.Bool{Op: op, Operands: parts}}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// slice copies rv[i:j] into a new slice of the same element type. rv may be
// an unaddressable array.
func slice(rv reflect.Value, i, j int) any {
	out := reflect.MakeSlice(reflect.SliceOf(rv.Type().Elem()), j-i, j-i)
	for k := i; k < j; k++ {
		out.Index(k - i).Set(rv.Index(k))
	}
	return out.Interface()
}
