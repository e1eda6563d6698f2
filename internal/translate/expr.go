package translate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/sqltree"
)

// predicate translates a node used as a condition. A bare value is compared
// with true.
func (c *scope) predicate(e exp.Expression) (sqltree.Node, error) {
	switch e.(type) {
	case *exp.Comparison, *exp.Like, *exp.In, *exp.Between, *exp.Bool, *exp.Not, *exp.Exists:
		return c.node(e)
	}
	n, err := c.value(e)
	if err != nil {
		return nil, err
	}
	return sqltree.Eq(n, &sqltree.Value{V: true}), nil
}

// value translates a node used as an operand.
func (c *scope) value(e exp.Expression) (sqltree.Node, error) {
	return c.node(e)
}

func (c *scope) node(e exp.Expression) (sqltree.Node, error) {
	switch n := e.(type) {
	case *exp.Path:
		return c.column(n)

	case *exp.Scalar:
		if n.Value == nil {
			return &sqltree.Text{SQL: "NULL"}, nil
		}
		return &sqltree.Value{V: n.Value}, nil

	case *exp.Param:
		return nil, fmt.Errorf("%w: $%s", exp.ErrUnboundParameter, n.Name)

	case *exp.Comparison:
		return c.comparison(n)

	case *exp.Like:
		left, err := c.value(n.Left)
		if err != nil {
			return nil, err
		}
		pattern, err := c.value(n.Pattern)
		if err != nil {
			return nil, err
		}
		escape := n.Escape
		if n.IgnoreCase {
			left = &sqltree.Function{Name: exp.FuncUpper, Args: []sqltree.Node{left}}
			pattern = &sqltree.Function{Name: exp.FuncUpper, Args: []sqltree.Node{pattern}}
			// The pattern is upper cased, so a letter escape must be too.
			if r := []rune(strings.ToUpper(string(escape))); escape != 0 && len(r) == 1 {
				escape = r[0]
			}
		}
		return &sqltree.Like{Not: n.Not, Expr: left, Pattern: pattern, Escape: escape}, nil

	case *exp.In:
		return c.in(n)

	case *exp.Between:
		expr, err := c.value(n.Expr)
		if err != nil {
			return nil, err
		}
		lower, err := c.value(n.Lower)
		if err != nil {
			return nil, err
		}
		upper, err := c.value(n.Upper)
		if err != nil {
			return nil, err
		}
		return &sqltree.Between{Not: n.Not, Expr: expr, Lower: lower, Upper: upper}, nil

	case *exp.Bool:
		operands := make([]sqltree.Node, 0, len(n.Operands))
		for _, o := range n.Operands {
			p, err := c.predicate(o)
			if err != nil {
				return nil, err
			}
			operands = append(operands, p)
		}
		if n.Op == exp.Or {
			return &sqltree.Bool{Op: "OR", Operands: operands}, nil
		}
		return &sqltree.Bool{Op: "AND", Operands: operands}, nil

	case *exp.Not:
		operand, err := c.predicate(n.Operand)
		if err != nil {
			return nil, err
		}
		return &sqltree.Unary{Op: "NOT", Expr: &sqltree.Paren{Expr: operand}}, nil

	case *exp.Function:
		if err := exp.CheckArity(n.Name, len(n.Args)); err != nil {
			return nil, err
		}
		args := make([]sqltree.Node, len(n.Args))
		for i, a := range n.Args {
			v, err := c.value(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return &sqltree.Function{Name: n.Name, Args: args}, nil

	case *exp.Aggregate:
		if n.Arg == nil {
			return &sqltree.Function{Name: string(n.Func), Args: []sqltree.Node{&sqltree.Text{SQL: "*"}}}, nil
		}
		arg, err := c.value(n.Arg)
		if err != nil {
			return nil, err
		}
		if n.Distinct {
			return &sqltree.Function{
				Name:      string(n.Func),
				Args:      []sqltree.Node{&sqltree.Text{SQL: "DISTINCT"}, arg},
				Separator: " ",
			}, nil
		}
		return &sqltree.Function{Name: string(n.Func), Args: []sqltree.Node{arg}}, nil

	case *exp.List:
		items, err := c.list(n)
		if err != nil {
			return nil, err
		}
		return &sqltree.Function{Args: items}, nil

	case *exp.Subquery:
		sub, err := c.subquery(n)
		if err != nil {
			return nil, err
		}
		return &sqltree.Paren{Expr: sub}, nil

	case *exp.Exists:
		sub, err := c.subquery(n.Query)
		if err != nil {
			return nil, err
		}
		return &sqltree.Exists{Query: sub}, nil
	}
	return nil, fmt.Errorf("translate: unsupported expression %T", e)
}

func (c *scope) comparison(n *exp.Comparison) (sqltree.Node, error) {
	left, right := n.Left, n.Right
	if exp.IsNullLiteral(left) {
		left, right = right, left
	}
	if exp.IsNullLiteral(right) && (n.Op == exp.Eq || n.Op == exp.Ne) {
		operand, err := c.value(left)
		if err != nil {
			return nil, err
		}
		op := "IS NULL"
		if n.Op == exp.Ne {
			op = "IS NOT NULL"
		}
		return &sqltree.Unary{Op: op, Expr: operand, Postfix: true}, nil
	}

	l, err := c.value(n.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.value(n.Right)
	if err != nil {
		return nil, err
	}
	return &sqltree.Op{Op: n.Op.String(), Left: l, Right: r}, nil
}

func (c *scope) in(n *exp.In) (sqltree.Node, error) {
	left, err := c.value(n.Left)
	if err != nil {
		return nil, err
	}
	switch r := n.Right.(type) {
	case *exp.Scalar:
		rv := reflect.ValueOf(r.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("IN needs a list, got %T", r.Value)
		}
		return &sqltree.InList{Not: n.Not, Expr: left, Values: r.Value}, nil

	case *exp.List:
		if values, ok := literalValues(r); ok {
			return &sqltree.InList{Not: n.Not, Expr: left, Values: values}, nil
		}
		items, err := c.list(r)
		if err != nil {
			return nil, err
		}
		op := "IN"
		if n.Not {
			op = "NOT IN"
		}
		return &sqltree.Op{Op: op, Left: left, Right: &sqltree.Function{Args: items}}, nil

	case *exp.Subquery:
		sub, err := c.subquery(r)
		if err != nil {
			return nil, err
		}
		return &sqltree.InQuery{Not: n.Not, Expr: left, Query: sub}, nil

	case *exp.Param:
		return nil, fmt.Errorf("%w: $%s", exp.ErrUnboundParameter, r.Name)
	}
	return nil, fmt.Errorf("translate: unsupported IN operand %T", n.Right)
}

// literalValues returns the values of a list made only of literals.
func literalValues(l *exp.List) ([]any, bool) {
	values := make([]any, len(l.Values))
	for i, v := range l.Values {
		s, ok := v.(*exp.Scalar)
		if !ok {
			return nil, false
		}
		values[i] = s.Value
	}
	return values, true
}

func (c *scope) list(l *exp.List) ([]sqltree.Node, error) {
	items := make([]sqltree.Node, len(l.Values))
	for i, v := range l.Values {
		n, err := c.value(v)
		if err != nil {
			return nil, err
		}
		items[i] = n
	}
	return items, nil
}

// subquery translates an uncorrelated subquery in a fresh alias namespace.
func (c *scope) subquery(q *exp.Subquery) (*sqltree.Select, error) {
	entity, err := c.t.Schema.Entity(q.Entity)
	if err != nil {
		return nil, err
	}
	sub := newScope(c.t, entity, fmt.Sprintf("s%d_", c.depth+1))
	sub.depth = c.depth + 1

	sel := &sqltree.Select{}
	if q.Where != nil {
		if sel.Where, err = sub.predicate(q.Where); err != nil {
			return nil, fmt.Errorf("subquery %s: %w", q.Entity, err)
		}
	}
	if q.Column != nil {
		col, err := sub.value(q.Column)
		if err != nil {
			return nil, fmt.Errorf("subquery %s: %w", q.Entity, err)
		}
		sel.Columns = []*sqltree.ResultColumn{{Expr: col}}
	} else {
		sel.Columns = []*sqltree.ResultColumn{{Expr: &sqltree.Star{Table: sub.alias}}}
	}
	sel.From = []sqltree.Node{sub.from}
	return sel, nil
}
