package exp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ormql/internal/value"
)

// Ordering sorts query results by an expression.
type Ordering struct {
	Expr       Expression
	Desc       bool
	IgnoreCase bool
}

// Asc orders by e ascending.
func Asc(e Expression) Ordering { return Ordering{Expr: e} }

// Desc orders by e descending.
func Desc(e Expression) Ordering { return Ordering{Expr: e, Desc: true} }

func (o Ordering) String() string {
	var b strings.Builder
	b.WriteString(Format(o.Expr))
	if o.Desc {
		b.WriteString(" desc")
	} else {
		b.WriteString(" asc")
	}
	if o.IgnoreCase {
		b.WriteString(" ignoreCase")
	}
	return b.String()
}

// ParseOrdering parses "<expr> [asc|desc] [ignoreCase]".
func ParseOrdering(s string) (Ordering, error) {
	fields := strings.Fields(s)
	var o Ordering
modifiers:
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		switch strings.ToLower(last) {
		case "asc":
		case "desc":
			o.Desc = true
		case "ignorecase":
			o.IgnoreCase = true
		default:
			break modifiers
		}
		fields = fields[:len(fields)-1]
	}
	e, err := Parse(strings.Join(fields, " "))
	if err != nil {
		return Ordering{}, fmt.Errorf("ordering %q: %w", s, err)
	}
	o.Expr = e
	return o, nil
}

// OrderList stable-sorts objects in place by the orderings. NULL sorts
// before any value in ascending order.
func OrderList[T any](objects []T, orderings ...Ordering) error {
	if len(orderings) == 0 || len(objects) < 2 {
		return nil
	}

	type keyed struct {
		obj  T
		keys []any
	}
	rows := make([]keyed, len(objects))
	for i, o := range objects {
		keys := make([]any, len(orderings))
		for j, ord := range orderings {
			v, err := Evaluate(ord.Expr, o)
			if err != nil {
				return fmt.Errorf("order by %s: %w", ord, err)
			}
			if s, ok := v.(string); ok && ord.IgnoreCase {
				v = strings.ToUpper(s)
			}
			keys[j] = v
		}
		rows[i] = keyed{obj: o, keys: keys}
	}

	var sortErr error
	slices.SortStableFunc(rows, func(a, b keyed) int {
		for j, ord := range orderings {
			c, err := compareKeys(a.keys[j], b.keys[j])
			if err != nil {
				if sortErr == nil {
					sortErr = fmt.Errorf("order by %s: %w", ord, err)
				}
				return 0
			}
			if ord.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	if sortErr != nil {
		return sortErr
	}
	for i := range rows {
		objects[i] = rows[i].obj
	}
	return nil
}

func compareKeys(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}
	return value.Compare(a, b)
}
