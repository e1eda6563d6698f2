package sqltree

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// PlaceholderStyle selects how bound parameters are written.
type PlaceholderStyle int

const (
	Question PlaceholderStyle = iota // ?
	Dollar                           // $1, $2 ...
	Colon                            // :1, :2 ...
)

// LimitStyle selects how a LimitOffset is written.
type LimitStyle int

const (
	// LimitOffsetClause writes LIMIT n OFFSET m.
	LimitOffsetClause LimitStyle = iota
	// OffsetFetchClause writes OFFSET m ROWS FETCH NEXT n ROWS ONLY.
	OffsetFetchClause
	// NoLimitClause refuses to render a window; the dialect must have
	// rewritten it away.
	NoLimitClause
)

// Renderer turns a tree into SQL text and its bound arguments.
type Renderer struct {
	Placeholder PlaceholderStyle
	Limit       LimitStyle
	// UnboundedLimit is written as the LIMIT of an offset-only window
	// ("-1" for SQLite). Empty omits the LIMIT.
	UnboundedLimit string
	// QuoteIdent quotes table and column names. Nil leaves them as is.
	QuoteIdent func(string) string
	// NullsOrdering enables NULLS FIRST/LAST in ORDER BY.
	NullsOrdering bool
	// BareColumnAlias writes result column aliases without AS.
	BareColumnAlias bool
}

// Render returns the SQL for n and the arguments for its placeholders in
// order.
func (r Renderer) Render(n Node) (string, []any, error) {
	w := &writer{r: r}
	w.node(n)
	if w.err != nil {
		return "", nil, w.err
	}
	return w.b.String(), w.args, nil
}

type writer struct {
	r    Renderer
	b    strings.Builder
	args []any
	err  error
}

func (w *writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf("render sql: "+format, args...)
	}
}

func (w *writer) str(s string) { w.b.WriteString(s) }

func (w *writer) ident(name string) {
	if w.r.QuoteIdent != nil {
		name = w.r.QuoteIdent(name)
	}
	w.str(name)
}

func (w *writer) placeholder(v any) {
	w.args = append(w.args, v)
	switch w.r.Placeholder {
	case Dollar:
		w.str("$" + strconv.Itoa(len(w.args)))
	case Colon:
		w.str(":" + strconv.Itoa(len(w.args)))
	default:
		w.str("?")
	}
}

func (w *writer) list(nodes []Node, sep string) {
	for i, n := range nodes {
		if i > 0 {
			w.str(sep)
		}
		w.node(n)
	}
}

func (w *writer) node(n Node) {
	if w.err != nil {
		return
	}
	switch x := n.(type) {
	case nil:
		w.fail("nil node")
	case *Select:
		w.selectStmt(x)
	case *Table:
		w.ident(x.Name)
		if x.Alias != "" {
			w.str(" " + x.Alias)
		}
	case *Derived:
		w.str("(")
		w.selectStmt(x.Query)
		w.str(")")
		if x.Alias != "" {
			w.str(" " + x.Alias)
		}
	case *Join:
		w.node(x.Left)
		if x.Kind == LeftJoin {
			w.str(" LEFT JOIN ")
		} else {
			w.str(" JOIN ")
		}
		w.node(x.Right)
		w.str(" ON ")
		w.node(x.On)
	case *Column:
		if x.Table != "" {
			w.str(x.Table + ".")
		}
		w.ident(x.Name)
		if x.OuterJoin {
			w.str(" (+)")
		}
	case *Star:
		if x.Table != "" {
			w.str(x.Table + ".")
		}
		w.str("*")
	case *Value:
		w.placeholder(x.V)
	case *Text:
		w.str(x.SQL)
	case *Function:
		w.function(x)
	case *Op:
		w.node(x.Left)
		w.str(" " + x.Op + " ")
		w.node(x.Right)
	case *Unary:
		if x.Postfix {
			w.node(x.Expr)
			w.str(" " + x.Op)
		} else {
			w.str(x.Op + " ")
			w.node(x.Expr)
		}
	case *Bool:
		w.boolean(x)
	case *InList:
		w.inList(x)
	case *InQuery:
		w.node(x.Expr)
		if x.Not {
			w.str(" NOT")
		}
		w.str(" IN (")
		w.selectStmt(x.Query)
		w.str(")")
	case *Between:
		w.node(x.Expr)
		if x.Not {
			w.str(" NOT")
		}
		w.str(" BETWEEN ")
		w.node(x.Lower)
		w.str(" AND ")
		w.node(x.Upper)
	case *Like:
		w.node(x.Expr)
		if x.Not {
			w.str(" NOT")
		}
		w.str(" LIKE ")
		w.node(x.Pattern)
		if x.Escape != 0 {
			w.str(" ESCAPE " + quoteString(string(x.Escape)))
		}
	case *Exists:
		if x.Not {
			w.str("NOT ")
		}
		w.str("EXISTS (")
		w.selectStmt(x.Query)
		w.str(")")
	case *Paren:
		w.str("(")
		w.node(x.Expr)
		w.str(")")
	case *Insert:
		w.insert(x)
	case *Update:
		w.update(x)
	default:
		w.fail("unsupported node %T", n)
	}
}

func (w *writer) selectStmt(s *Select) {
	if s == nil {
		w.fail("nil select")
		return
	}
	w.str("SELECT ")
	if s.Distinct {
		w.str("DISTINCT ")
	}
	if len(s.Columns) == 0 {
		w.str("*")
	}
	for i, c := range s.Columns {
		if i > 0 {
			w.str(", ")
		}
		w.node(c.Expr)
		if c.Alias != "" {
			if w.r.BareColumnAlias {
				w.str(" " + c.Alias)
			} else {
				w.str(" AS " + c.Alias)
			}
		}
	}
	if len(s.From) > 0 {
		w.str(" FROM ")
		w.list(s.From, ", ")
	}
	if s.Where != nil {
		w.str(" WHERE ")
		w.node(s.Where)
	}
	if len(s.GroupBy) > 0 {
		w.str(" GROUP BY ")
		w.list(s.GroupBy, ", ")
	}
	if s.Having != nil {
		w.str(" HAVING ")
		w.node(s.Having)
	}
	for i, o := range s.OrderBy {
		if i == 0 {
			w.str(" ORDER BY ")
		} else {
			w.str(", ")
		}
		w.node(o.Expr)
		if o.Desc {
			w.str(" DESC")
		}
		if w.r.NullsOrdering {
			switch o.Nulls {
			case NullsFirst:
				w.str(" NULLS FIRST")
			case NullsLast:
				w.str(" NULLS LAST")
			}
		}
	}
	if s.Limit.Active() {
		w.limit(s.Limit)
	}
	if s.ForUpdate {
		w.str(" FOR UPDATE")
	}
}

func (w *writer) limit(l *LimitOffset) {
	switch w.r.Limit {
	case LimitOffsetClause:
		switch {
		case l.Limit > 0:
			w.str(" LIMIT " + strconv.Itoa(l.Limit))
		case w.r.UnboundedLimit != "":
			w.str(" LIMIT " + w.r.UnboundedLimit)
		}
		if l.Offset > 0 {
			w.str(" OFFSET " + strconv.Itoa(l.Offset))
		}
	case OffsetFetchClause:
		w.str(" OFFSET " + strconv.Itoa(l.Offset) + " ROWS")
		if l.Limit > 0 {
			w.str(" FETCH NEXT " + strconv.Itoa(l.Limit) + " ROWS ONLY")
		}
	default:
		w.fail("limit/offset must be rewritten before rendering")
	}
}

func (w *writer) function(f *Function) {
	sep := f.Separator
	if sep == "" {
		sep = ", "
	}
	if f.NoParens {
		w.str(f.Name)
		if len(f.Args) > 0 {
			if f.Name != "" {
				w.str(" ")
			}
			w.list(f.Args, sep)
		}
		return
	}
	w.str(f.Name + "(")
	w.list(f.Args, sep)
	w.str(")")
}

func (w *writer) boolean(b *Bool) {
	if len(b.Operands) == 0 {
		// Empty AND is true, empty OR is false.
		if b.Op == "OR" {
			w.str("1 = 0")
		} else {
			w.str("1 = 1")
		}
		return
	}
	for i, o := range b.Operands {
		if i > 0 {
			w.str(" " + b.Op + " ")
		}
		if inner, ok := o.(*Bool); ok && inner.Op != b.Op && len(inner.Operands) > 1 {
			w.str("(")
			w.node(o)
			w.str(")")
			continue
		}
		w.node(o)
	}
}

func (w *writer) inList(in *InList) {
	rv := reflect.ValueOf(in.Values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		w.fail("IN list holds %T, want a slice", in.Values)
		return
	}
	if rv.Len() == 0 {
		// x IN () is not valid SQL.
		if in.Not {
			w.str("1 = 1")
		} else {
			w.str("1 = 0")
		}
		return
	}
	w.node(in.Expr)
	if in.Not {
		w.str(" NOT")
	}
	w.str(" IN (")
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			w.str(", ")
		}
		w.placeholder(rv.Index(i).Interface())
	}
	w.str(")")
}

func (w *writer) insert(ins *Insert) {
	if len(ins.Columns) != len(ins.Values) {
		w.fail("insert into %s: %d columns, %d values", ins.Table, len(ins.Columns), len(ins.Values))
		return
	}
	w.str("INSERT INTO ")
	w.ident(ins.Table)
	w.str(" (")
	for i, c := range ins.Columns {
		if i > 0 {
			w.str(", ")
		}
		w.ident(c)
	}
	w.str(") VALUES (")
	w.list(ins.Values, ", ")
	w.str(")")
}

func (w *writer) update(u *Update) {
	w.str("UPDATE ")
	w.ident(u.Table)
	w.str(" SET ")
	for i, a := range u.Set {
		if i > 0 {
			w.str(", ")
		}
		w.ident(a.Column)
		w.str(" = ")
		w.node(a.Value)
	}
	if u.Where != nil {
		w.str(" WHERE ")
		w.node(u.Where)
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Literal renders s as a quoted SQL string literal.
func Literal(s string) *Text {
	return &Text{SQL: quoteString(s)}
}
