package sqltree

import (
	"fmt"
	"reflect"
)

// Transform rebuilds n bottom-up. Children are transformed first, then fn
// receives a fresh copy of each node with its new children and returns the
// node to use in its place. The input tree is never modified.
func Transform(n Node, fn func(Node) Node) Node {
	if n == nil {
		return nil
	}
	return fn(rebuild(n, fn))
}

// Clone returns a deep copy of n.
func Clone(n Node) Node {
	return Transform(n, func(n Node) Node { return n })
}

// CloneSelect is Clone for a *Select.
func CloneSelect(s *Select) *Select {
	if s == nil {
		return nil
	}
	return Clone(s).(*Select)
}

func rebuild(n Node, fn func(Node) Node) Node {
	t := func(c Node) Node { return Transform(c, fn) }
	list := func(in []Node) []Node {
		if in == nil {
			return nil
		}
		out := make([]Node, len(in))
		for i, c := range in {
			out[i] = t(c)
		}
		return out
	}
	// Subqueries must come back as selects; fn may not replace them with
	// another node type.
	sub := func(s *Select) *Select {
		if s == nil {
			return nil
		}
		res := t(s)
		r, ok := res.(*Select)
		if !ok {
			panic(fmt.Sprintf("sqltree: transform replaced a subquery with %T", res))
		}
		return r
	}

	switch x := n.(type) {
	case *Select:
		c := *x
		c.Columns = make([]*ResultColumn, len(x.Columns))
		for i, rc := range x.Columns {
			c.Columns[i] = &ResultColumn{Expr: t(rc.Expr), Alias: rc.Alias}
		}
		c.From = list(x.From)
		c.Where = t(x.Where)
		c.GroupBy = list(x.GroupBy)
		c.Having = t(x.Having)
		if x.OrderBy != nil {
			c.OrderBy = make([]*OrderItem, len(x.OrderBy))
			for i, o := range x.OrderBy {
				c.OrderBy[i] = &OrderItem{Expr: t(o.Expr), Desc: o.Desc, Nulls: o.Nulls}
			}
		}
		if x.Limit != nil {
			lo := *x.Limit
			c.Limit = &lo
		}
		return &c
	case *Table:
		c := *x
		return &c
	case *Derived:
		return &Derived{Query: sub(x.Query), Alias: x.Alias}
	case *Join:
		right, ok := t(x.Right).(*Table)
		if !ok {
			panic("sqltree: transform replaced a joined table")
		}
		return &Join{Kind: x.Kind, Left: t(x.Left), Right: right, On: t(x.On)}
	case *Column:
		c := *x
		return &c
	case *Star:
		c := *x
		return &c
	case *Value:
		c := *x
		return &c
	case *Text:
		c := *x
		return &c
	case *Function:
		return &Function{Name: x.Name, Args: list(x.Args), Separator: x.Separator, NoParens: x.NoParens}
	case *Op:
		return &Op{Op: x.Op, Left: t(x.Left), Right: t(x.Right)}
	case *Unary:
		return &Unary{Op: x.Op, Expr: t(x.Expr), Postfix: x.Postfix}
	case *Bool:
		return &Bool{Op: x.Op, Operands: list(x.Operands)}
	case *InList:
		return &InList{Not: x.Not, Expr: t(x.Expr), Values: copySlice(x.Values)}
	case *InQuery:
		return &InQuery{Not: x.Not, Expr: t(x.Expr), Query: sub(x.Query)}
	case *Between:
		return &Between{Not: x.Not, Expr: t(x.Expr), Lower: t(x.Lower), Upper: t(x.Upper)}
	case *Like:
		return &Like{Not: x.Not, Expr: t(x.Expr), Pattern: t(x.Pattern), Escape: x.Escape}
	case *Exists:
		return &Exists{Not: x.Not, Query: sub(x.Query)}
	case *Paren:
		return &Paren{Expr: t(x.Expr)}
	case *Insert:
		return &Insert{Table: x.Table, Columns: append([]string(nil), x.Columns...), Values: list(x.Values)}
	case *Update:
		c := &Update{Table: x.Table, Where: t(x.Where)}
		c.Set = make([]Assignment, len(x.Set))
		for i, a := range x.Set {
			c.Set[i] = Assignment{Column: a.Column, Value: t(a.Value)}
		}
		return c
	}
	panic(fmt.Sprintf("sqltree: unknown node %T", n))
}

// copySlice copies a slice or array so a cloned InList never aliases the
// original's backing array. Other values are returned unchanged.
func copySlice(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		reflect.Copy(out, rv)
		return out.Interface()
	}
	return v
}

// Walk calls fn for n and every descendant in depth-first order until fn
// returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Children returns the direct children of n.
func Children(n Node) []Node {
	var out []Node
	add := func(ns ...Node) {
		for _, c := range ns {
			if c != nil && !isNilNode(c) {
				out = append(out, c)
			}
		}
	}
	switch x := n.(type) {
	case *Select:
		for _, rc := range x.Columns {
			add(rc.Expr)
		}
		add(x.From...)
		add(x.Where)
		add(x.GroupBy...)
		add(x.Having)
		for _, o := range x.OrderBy {
			add(o.Expr)
		}
	case *Derived:
		add(x.Query)
	case *Join:
		add(x.Left, x.Right, x.On)
	case *Function:
		add(x.Args...)
	case *Op:
		add(x.Left, x.Right)
	case *Unary:
		add(x.Expr)
	case *Bool:
		add(x.Operands...)
	case *InList:
		add(x.Expr)
	case *InQuery:
		add(x.Expr, x.Query)
	case *Between:
		add(x.Expr, x.Lower, x.Upper)
	case *Like:
		add(x.Expr, x.Pattern)
	case *Exists:
		add(x.Query)
	case *Paren:
		add(x.Expr)
	case *Insert:
		add(x.Values...)
	case *Update:
		for _, a := range x.Set {
			add(a.Value)
		}
		add(x.Where)
	}
	return out
}

func isNilNode(n Node) bool {
	switch x := n.(type) {
	case *Select:
		return x == nil
	case *Table:
		return x == nil
	}
	return false
}
