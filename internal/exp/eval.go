package exp

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/ormql/internal/access"
	"github.com/roach88/ormql/internal/value"
)

// tri is a SQL truth value.
type tri int8

const (
	triFalse tri = iota
	triTrue
	triUnknown
)

func triOf(b bool) tri {
	if b {
		return triTrue
	}
	return triFalse
}

func (t tri) not() tri {
	switch t {
	case triTrue:
		return triFalse
	case triFalse:
		return triTrue
	}
	return triUnknown
}

func (t tri) value() any {
	switch t {
	case triTrue:
		return true
	case triFalse:
		return false
	}
	return nil
}

// evaluator interprets an expression against one object. When row is set,
// relationship prefixes resolve through it instead of walking the graph.
type evaluator struct {
	root any
	row  map[string]any
	now  time.Time
}

// Evaluate computes the value of e against target.
//
// Value nodes return the value they denote. Predicates return true, false
// or nil for UNKNOWN. Aggregates treat target as the collection to
// aggregate over.
func Evaluate(e Expression, target any) (any, error) {
	switch e.(type) {
	case *Comparison, *Like, *In, *Between, *Bool, *Not, *Exists:
		t, err := matchRows(e, target)
		if err != nil {
			return nil, err
		}
		return t.value(), nil
	}
	ev := &evaluator{root: target, now: time.Now()}
	return ev.value(e)
}

// Match reports whether target satisfies the qualifier e. A nil qualifier
// matches everything; UNKNOWN does not match.
func Match(e Expression, target any) (bool, error) {
	if e == nil {
		return true, nil
	}
	t, err := matchRows(e, target)
	if err != nil {
		return false, err
	}
	return t == triTrue, nil
}

// Filter returns the objects matching e, preserving order.
func Filter[T any](e Expression, objects []T) ([]T, error) {
	out := make([]T, 0, len(objects))
	for _, o := range objects {
		ok, err := Match(e, o)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// First returns the first object matching e.
func First[T any](e Expression, objects []T) (T, bool, error) {
	var zero T
	for _, o := range objects {
		ok, err := Match(e, o)
		if err != nil {
			return zero, false, err
		}
		if ok {
			return o, true, nil
		}
	}
	return zero, false, nil
}

func matchRows(e Expression, target any) (tri, error) {
	rows, err := joinRows(target, e)
	if err != nil {
		return triFalse, err
	}
	now := time.Now()
	result := triFalse
	for _, row := range rows {
		ev := &evaluator{root: target, row: row, now: now}
		t, err := ev.truth(e)
		if err != nil {
			return triFalse, err
		}
		if t == triTrue {
			return triTrue, nil
		}
		if t == triUnknown {
			result = triUnknown
		}
	}
	return result, nil
}

type joinPrefix struct {
	key    string
	parent string
	name   string
	outer  bool
	depth  int
}

// joinRows binds every relationship prefix referenced by e, producing one
// row per combination of to-many elements. Inner relationships with no
// target drop the row; outer ones keep it with a nil binding.
func joinRows(root any, e Expression) ([]map[string]any, error) {
	var prefixes []joinPrefix
	seen := make(map[string]bool)
	for _, p := range Paths(e) {
		if p.DB {
			continue
		}
		raw := strings.Split(strings.TrimPrefix(p.Name, access.ObjPrefix), ".")
		for i := 1; i < len(raw); i++ {
			key := strings.Join(raw[:i], ".")
			if seen[key] {
				continue
			}
			seen[key] = true
			seg := raw[i-1]
			prefixes = append(prefixes, joinPrefix{
				key:    key,
				parent: strings.Join(raw[:i-1], "."),
				name:   strings.TrimSuffix(seg, access.OuterMarker),
				outer:  strings.HasSuffix(seg, access.OuterMarker),
				depth:  i,
			})
		}
	}
	slices.SortStableFunc(prefixes, func(a, b joinPrefix) int { return a.depth - b.depth })

	rows := []map[string]any{{}}
	for _, jp := range prefixes {
		var next []map[string]any
		for _, row := range rows {
			parent := root
			if jp.parent != "" {
				parent = row[jp.parent]
			}
			v, err := access.Property(parent, jp.name)
			if err != nil {
				return nil, err
			}

			targets := []any{v}
			if access.IsToMany(v) {
				targets = access.Elements(v)
			}
			kept := 0
			for _, t := range targets {
				if t == nil {
					continue
				}
				next = append(next, extend(row, jp.key, t))
				kept++
			}
			if kept == 0 && jp.outer {
				next = append(next, extend(row, jp.key, nil))
			}
		}
		rows = next
		if len(rows) == 0 {
			break
		}
	}
	return rows, nil
}

func extend(row map[string]any, key string, v any) map[string]any {
	out := make(map[string]any, len(row)+1)
	for k, x := range row {
		out[k] = x
	}
	out[key] = v
	return out
}

func (ev *evaluator) path(p *Path) (any, error) {
	if p.DB {
		return access.Column(ev.root, p.Name)
	}
	name := strings.TrimPrefix(p.Name, access.ObjPrefix)
	if ev.row == nil {
		return access.Path(ev.root, name)
	}
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return access.Property(ev.root, strings.TrimSuffix(name, access.OuterMarker))
	}
	parent, bound := ev.row[name[:i]]
	if !bound {
		return access.Path(ev.root, name)
	}
	return access.Property(parent, strings.TrimSuffix(name[i+1:], access.OuterMarker))
}

func (ev *evaluator) value(e Expression) (any, error) {
	switch n := e.(type) {
	case *Path:
		return ev.path(n)
	case *Scalar:
		return n.Value, nil
	case *Param:
		return nil, fmt.Errorf("%w: $%s", ErrUnboundParameter, n.Name)
	case *Comparison, *Like, *In, *Between, *Bool, *Not, *Exists:
		t, err := ev.truth(e)
		if err != nil {
			return nil, err
		}
		return t.value(), nil
	case *Function:
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			v, err := ev.value(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return callFunction(n.Name, args, ev.now)
	case *Aggregate:
		return ev.aggregate(n)
	case *List:
		out := make([]any, len(n.Values))
		for i, item := range n.Values {
			v, err := ev.value(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *Subquery:
		return nil, fmt.Errorf("%w: subquery on %s", ErrNotInMemory, n.Entity)
	}
	return nil, fmt.Errorf("evaluate: unsupported node %T", e)
}

func (ev *evaluator) truth(e Expression) (tri, error) {
	switch n := e.(type) {
	case *Comparison:
		return ev.comparison(n)
	case *Like:
		return ev.like(n)
	case *In:
		return ev.in(n)
	case *Between:
		return ev.between(n)
	case *Bool:
		return ev.boolean(n)
	case *Not:
		t, err := ev.truth(n.Operand)
		return t.not(), err
	case *Exists:
		return triFalse, fmt.Errorf("%w: exists on %s", ErrNotInMemory, n.Query.Entity)
	}

	v, err := ev.value(e)
	if err != nil {
		return triFalse, err
	}
	switch b := v.(type) {
	case nil:
		return triUnknown, nil
	case bool:
		return triOf(b), nil
	}
	return triFalse, fmt.Errorf("evaluate: %s is not a predicate (%T)", e, v)
}

func (ev *evaluator) boolean(n *Bool) (tri, error) {
	result := triTrue
	if n.Op == Or {
		result = triFalse
	}
	for _, op := range n.Operands {
		t, err := ev.truth(op)
		if err != nil {
			return triFalse, err
		}
		switch {
		case n.Op == And && t == triFalse:
			return triFalse, nil
		case n.Op == Or && t == triTrue:
			return triTrue, nil
		case t == triUnknown:
			result = triUnknown
		}
	}
	return result, nil
}

func (ev *evaluator) comparison(n *Comparison) (tri, error) {
	if n.Op == Eq || n.Op == Ne {
		var other Expression
		switch {
		case IsNullLiteral(n.Right):
			other = n.Left
		case IsNullLiteral(n.Left):
			other = n.Right
		}
		if other != nil {
			v, err := ev.value(other)
			if err != nil {
				return triFalse, err
			}
			return anyOf(v, func(x any) (tri, error) {
				return triOf((x == nil) == (n.Op == Eq)), nil
			})
		}
	}

	l, err := ev.value(n.Left)
	if err != nil {
		return triFalse, err
	}
	r, err := ev.value(n.Right)
	if err != nil {
		return triFalse, err
	}
	return anyOf(l, func(x any) (tri, error) {
		return compare(n.Op, x, r)
	})
}

// anyOf applies fn to v, or to each element when v is a to-many collection,
// and is TRUE if any application is TRUE.
func anyOf(v any, fn func(any) (tri, error)) (tri, error) {
	if !access.IsToMany(v) {
		return fn(v)
	}
	result := triFalse
	for _, x := range access.Elements(v) {
		t, err := fn(x)
		if err != nil {
			return triFalse, err
		}
		if t == triTrue {
			return triTrue, nil
		}
		if t == triUnknown {
			result = triUnknown
		}
	}
	return result, nil
}

func compare(op CompareOp, l, r any) (tri, error) {
	if l == nil || r == nil {
		return triUnknown, nil
	}
	switch op {
	case Eq:
		return triOf(value.Equal(l, r)), nil
	case Ne:
		return triOf(!value.Equal(l, r)), nil
	}
	c, err := value.Compare(l, r)
	if err != nil {
		if errors.Is(err, value.ErrIncomparable) {
			return triUnknown, nil
		}
		return triFalse, err
	}
	switch op {
	case Lt:
		return triOf(c < 0), nil
	case Le:
		return triOf(c <= 0), nil
	case Gt:
		return triOf(c > 0), nil
	case Ge:
		return triOf(c >= 0), nil
	}
	return triFalse, fmt.Errorf("evaluate: unknown operator %v", op)
}

func (ev *evaluator) like(n *Like) (tri, error) {
	l, err := ev.value(n.Left)
	if err != nil {
		return triFalse, err
	}
	p, err := ev.value(n.Pattern)
	if err != nil {
		return triFalse, err
	}
	if p == nil {
		return triUnknown, nil
	}
	m, err := compileLike(p, n.Escape, n.IgnoreCase)
	if err != nil {
		return triFalse, err
	}
	t, err := anyOf(l, func(x any) (tri, error) {
		if x == nil {
			return triUnknown, nil
		}
		ok, err := m.match(x)
		return triOf(ok), err
	})
	if n.Not {
		t = t.not()
	}
	return t, err
}

func (ev *evaluator) inValues(right Expression) ([]any, error) {
	switch r := right.(type) {
	case *List:
		v, err := ev.value(r)
		if err != nil {
			return nil, err
		}
		return v.([]any), nil
	case *Scalar:
		if r.Value == nil {
			return []any{nil}, nil
		}
		if access.IsToMany(r.Value) {
			return access.Elements(r.Value), nil
		}
		return []any{r.Value}, nil
	}
	v, err := ev.value(right)
	if err != nil {
		return nil, err
	}
	if access.IsToMany(v) {
		return access.Elements(v), nil
	}
	return []any{v}, nil
}

func (ev *evaluator) in(n *In) (tri, error) {
	values, err := ev.inValues(n.Right)
	if err != nil {
		return triFalse, err
	}
	l, err := ev.value(n.Left)
	if err != nil {
		return triFalse, err
	}

	t, err := anyOf(l, func(x any) (tri, error) {
		if len(values) == 0 {
			return triFalse, nil
		}
		if x == nil {
			return triUnknown, nil
		}
		result := triFalse
		for _, v := range values {
			if v == nil {
				result = triUnknown
				continue
			}
			if value.Equal(x, v) {
				return triTrue, nil
			}
		}
		return result, nil
	})
	if n.Not {
		t = t.not()
	}
	return t, err
}

func (ev *evaluator) between(n *Between) (tri, error) {
	x, err := ev.value(n.Expr)
	if err != nil {
		return triFalse, err
	}
	lo, err := ev.value(n.Lower)
	if err != nil {
		return triFalse, err
	}
	hi, err := ev.value(n.Upper)
	if err != nil {
		return triFalse, err
	}
	t, err := anyOf(x, func(x any) (tri, error) {
		a, err := compare(Ge, x, lo)
		if err != nil {
			return triFalse, err
		}
		b, err := compare(Le, x, hi)
		if err != nil {
			return triFalse, err
		}
		switch {
		case a == triFalse || b == triFalse:
			return triFalse, nil
		case a == triUnknown || b == triUnknown:
			return triUnknown, nil
		}
		return triTrue, nil
	})
	if n.Not {
		t = t.not()
	}
	return t, err
}
