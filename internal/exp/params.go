package exp

// Params returns a copy of e with every named parameter found in values
// replaced by a literal.
//
// With pruneMissing, predicates that still reference an unbound parameter
// are removed: AND/OR drop the operand, NOT drops itself, and a qualifier
// left with nothing becomes nil. Without it, unbound parameters stay in the
// tree and fail with ErrUnboundParameter when evaluated or rendered.
func Params(e Expression, values map[string]any, pruneMissing bool) Expression {
	if e == nil {
		return nil
	}
	if !pruneMissing {
		return bind(e, values)
	}
	out, keep := prune(e, values)
	if !keep {
		return nil
	}
	return out
}

func bind(e Expression, values map[string]any) Expression {
	return Transform(e, func(n Expression) Expression {
		if p, ok := n.(*Param); ok {
			if v, found := values[p.Name]; found {
				return &Scalar{Value: v}
			}
		}
		return n
	})
}

func prune(e Expression, values map[string]any) (Expression, bool) {
	switch n := e.(type) {
	case *Bool:
		var kept []Expression
		for _, op := range n.Operands {
			if out, ok := prune(op, values); ok {
				kept = append(kept, out)
			}
		}
		switch len(kept) {
		case 0:
			return nil, false
		case 1:
			return kept[0], true
		}
		return &Bool{Op: n.Op, Operands: kept}, true
	case *Not:
		out, ok := prune(n.Operand, values)
		if !ok {
			return nil, false
		}
		return &Not{Operand: out}, true
	}

	for _, name := range ParamNames(e) {
		if _, found := values[name]; !found {
			return nil, false
		}
	}
	return bind(e, values), true
}
