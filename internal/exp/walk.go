package exp

// Children returns the direct child expressions of e in evaluation order.
func Children(e Expression) []Expression {
	switch n := e.(type) {
	case *Path, *Scalar, *Param:
		return nil
	case *Comparison:
		return []Expression{n.Left, n.Right}
	case *Like:
		return []Expression{n.Left, n.Pattern}
	case *In:
		return []Expression{n.Left, n.Right}
	case *Between:
		return []Expression{n.Expr, n.Lower, n.Upper}
	case *Bool:
		return n.Operands
	case *Not:
		return []Expression{n.Operand}
	case *Function:
		return n.Args
	case *Aggregate:
		if n.Arg == nil {
			return nil
		}
		return []Expression{n.Arg}
	case *List:
		return n.Values
	case *Subquery:
		var out []Expression
		if n.Column != nil {
			out = append(out, n.Column)
		}
		if n.Where != nil {
			out = append(out, n.Where)
		}
		return out
	case *Exists:
		return []Expression{n.Query}
	}
	return nil
}

// Walk visits e and its descendants depth first. Returning false from fn
// skips the children of that node. Subquery bodies are visited too.
func Walk(e Expression, fn func(Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, fn)
	}
}

// Transform rebuilds e bottom-up. fn receives each node after its children
// were transformed and returns the replacement. e itself is never modified.
func Transform(e Expression, fn func(Expression) Expression) Expression {
	if e == nil {
		return nil
	}
	tr := func(c Expression) Expression { return Transform(c, fn) }
	trAll := func(cs []Expression) []Expression {
		if cs == nil {
			return nil
		}
		out := make([]Expression, len(cs))
		for i, c := range cs {
			out[i] = tr(c)
		}
		return out
	}

	var rebuilt Expression
	switch n := e.(type) {
	case *Path:
		c := *n
		rebuilt = &c
	case *Scalar:
		c := *n
		rebuilt = &c
	case *Param:
		c := *n
		rebuilt = &c
	case *Comparison:
		rebuilt = &Comparison{Op: n.Op, Left: tr(n.Left), Right: tr(n.Right)}
	case *Like:
		rebuilt = &Like{Not: n.Not, IgnoreCase: n.IgnoreCase, Left: tr(n.Left), Pattern: tr(n.Pattern), Escape: n.Escape}
	case *In:
		rebuilt = &In{Not: n.Not, Left: tr(n.Left), Right: tr(n.Right)}
	case *Between:
		rebuilt = &Between{Not: n.Not, Expr: tr(n.Expr), Lower: tr(n.Lower), Upper: tr(n.Upper)}
	case *Bool:
		rebuilt = &Bool{Op: n.Op, Operands: trAll(n.Operands)}
	case *Not:
		rebuilt = &Not{Operand: tr(n.Operand)}
	case *Function:
		rebuilt = &Function{Name: n.Name, Args: trAll(n.Args)}
	case *Aggregate:
		rebuilt = &Aggregate{Func: n.Func, Arg: tr(n.Arg), Distinct: n.Distinct}
	case *List:
		rebuilt = &List{Values: trAll(n.Values)}
	case *Subquery:
		rebuilt = transformSubquery(n, fn)
	case *Exists:
		rebuilt = &Exists{Query: transformSubquery(n.Query, fn)}
	default:
		return e
	}
	return fn(rebuilt)
}

func transformSubquery(n *Subquery, fn func(Expression) Expression) *Subquery {
	if n == nil {
		return nil
	}
	return &Subquery{
		Entity: n.Entity,
		Column: Transform(n.Column, fn),
		Where:  Transform(n.Where, fn),
	}
}

// DeepCopy returns an independent copy of e.
func DeepCopy(e Expression) Expression {
	return Transform(e, func(n Expression) Expression { return n })
}

// Paths returns every object and db path referenced by e outside of
// subqueries, in first-seen order.
func Paths(e Expression) []*Path {
	var out []*Path
	Walk(e, func(n Expression) bool {
		switch p := n.(type) {
		case *Path:
			out = append(out, p)
		case *Subquery, *Exists:
			return false
		}
		return true
	})
	return out
}

// ParamNames returns the names of all parameters in e, in first-seen order
// and without duplicates.
func ParamNames(e Expression) []string {
	seen := make(map[string]bool)
	var out []string
	Walk(e, func(n Expression) bool {
		if p, ok := n.(*Param); ok && !seen[p.Name] {
			seen[p.Name] = true
			out = append(out, p.Name)
		}
		return true
	})
	return out
}
