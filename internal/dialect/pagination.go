package dialect

import (
	"fmt"
	"strconv"

	"github.com/roach88/ormql/internal/sqltree"
)

// rowNum rewrites a windowed select for databases without LIMIT:
//
//	SELECT c0, c1 FROM (SELECT tid.*, ROWNUM rnum FROM (<sel>) tid
//	WHERE ROWNUM <= max) WHERE rnum > offset
//
// max is limit+offset, or MaxRowNum when only an offset is set. The
// result columns of sel are aliased c0, c1 ... so the outer select can
// name them.
func rowNum(sel *sqltree.Select) sqltree.Node {
	if !sel.Limit.Active() {
		return sel
	}
	window := *sel.Limit
	inner := sqltree.CloneSelect(sel)
	inner.Limit = nil

	columns := make([]*sqltree.ResultColumn, len(inner.Columns))
	for i, c := range inner.Columns {
		c.Alias = fmt.Sprintf("c%d", i)
		columns[i] = &sqltree.ResultColumn{Expr: sqltree.Col("", c.Alias)}
	}

	upper := MaxRowNum
	if window.Limit > 0 {
		upper = window.Limit + window.Offset
	}
	numbered := &sqltree.Select{
		Columns: []*sqltree.ResultColumn{
			{Expr: &sqltree.Star{Table: "tid"}},
			{Expr: &sqltree.Text{SQL: "ROWNUM"}, Alias: "rnum"},
		},
		From:  []sqltree.Node{&sqltree.Derived{Query: inner, Alias: "tid"}},
		Where: &sqltree.Op{Op: "<=", Left: &sqltree.Text{SQL: "ROWNUM"}, Right: &sqltree.Text{SQL: strconv.Itoa(upper)}},
	}
	return &sqltree.Select{
		Columns: columns,
		From:    []sqltree.Node{&sqltree.Derived{Query: numbered}},
		Where:   &sqltree.Op{Op: ">", Left: &sqltree.Text{SQL: "rnum"}, Right: &sqltree.Text{SQL: strconv.Itoa(window.Offset)}},
	}
}
