package dialect

import "github.com/roach88/ormql/internal/sqltree"

// oracleJoins rewrites every ANSI join into Oracle 8 form: joined tables
// are listed in FROM and join conditions are ANDed into WHERE. Columns of
// the optional table of a LEFT JOIN are marked (+).
func oracleJoins(n sqltree.Node) sqltree.Node {
	return sqltree.Transform(n, func(n sqltree.Node) sqltree.Node {
		sel, ok := n.(*sqltree.Select)
		if !ok {
			return n
		}
		var from, conds []sqltree.Node
		joined := false
		for _, f := range sel.From {
			j, ok := f.(*sqltree.Join)
			if !ok {
				from = append(from, f)
				continue
			}
			joined = true
			tables, on := flattenJoin(j)
			from = append(from, tables...)
			conds = append(conds, on...)
		}
		if !joined {
			return sel
		}
		sel.From = from
		sel.Where = sqltree.And(append(conds, sel.Where)...)
		return sel
	})
}

func flattenJoin(j *sqltree.Join) (tables, conds []sqltree.Node) {
	if left, ok := j.Left.(*sqltree.Join); ok {
		tables, conds = flattenJoin(left)
	} else {
		tables = []sqltree.Node{j.Left}
	}
	on := j.On
	if j.Kind == sqltree.LeftJoin {
		on = markOuter(on, j.Right.Alias)
	}
	return append(tables, j.Right), append(conds, on)
}

func markOuter(n sqltree.Node, alias string) sqltree.Node {
	return sqltree.Transform(n, func(n sqltree.Node) sqltree.Node {
		if c, ok := n.(*sqltree.Column); ok && c.Table == alias {
			c.OuterJoin = true
		}
		return n
	})
}
