// Package sqltree is an engine-agnostic SQL syntax tree.
//
// Trees are built by package translate, rewritten by package dialect and
// turned into text by a Renderer. Node is sealed: only types in this package
// implement it. Rewrites never mutate a tree in place; Transform rebuilds
// the tree bottom-up and returns a new root.
package sqltree

// Node is any SQL tree node.
type Node interface {
	sqlNode()
}

// Select is a SELECT statement.
type Select struct {
	Distinct  bool
	Columns   []*ResultColumn
	From      []Node // *Table, *Derived or *Join
	Where     Node
	GroupBy   []Node
	Having    Node
	OrderBy   []*OrderItem
	Limit     *LimitOffset
	ForUpdate bool
}

// ResultColumn is one entry of the select list.
type ResultColumn struct {
	Expr  Node
	Alias string
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Expr  Node
	Desc  bool
	Nulls NullOrder
}

// NullOrder places NULLs in an ORDER BY term.
type NullOrder int

const (
	NullsDefault NullOrder = iota
	NullsFirst
	NullsLast
)

// LimitOffset is a result window. Limit <= 0 means no upper bound.
type LimitOffset struct {
	Limit  int
	Offset int
}

// Active reports whether the window restricts the result at all.
func (l *LimitOffset) Active() bool {
	return l != nil && (l.Limit > 0 || l.Offset > 0)
}

// Table is a table reference in FROM.
type Table struct {
	Name  string
	Alias string
}

// Derived is a subquery in FROM.
type Derived struct {
	Query *Select
	Alias string
}

// JoinKind selects the join operator.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

// Join joins Right onto Left. Left may itself be a join.
type Join struct {
	Kind  JoinKind
	Left  Node
	Right *Table
	On    Node
}

// Column references a column, qualified by a table alias when Table is set.
// OuterJoin marks the optional side of an Oracle 8 style join.
type Column struct {
	Table     string
	Name      string
	OuterJoin bool
}

// Star is * or alias.*.
type Star struct {
	Table string
}

// Value is a bound parameter.
type Value struct {
	V any
}

// Text is raw SQL copied to the output as is.
type Text struct {
	SQL string
}

// Function is a function call. Separator defaults to ", ". With NoParens the
// arguments follow the name unparenthesised; a NoParens function without
// arguments is a bare keyword such as CURRENT_DATE.
type Function struct {
	Name      string
	Args      []Node
	Separator string
	NoParens  bool
}

// Op is a binary operator.
type Op struct {
	Op    string
	Left  Node
	Right Node
}

// Unary is a prefix operator such as NOT, or a postfix one such as IS NULL.
type Unary struct {
	Op      string
	Expr    Node
	Postfix bool
}

// Bool joins operands with AND or OR.
type Bool struct {
	Op       string
	Operands []Node
}

// InList is x [NOT] IN (values). Values holds a Go slice or array so dialects
// can batch long lists.
type InList struct {
	Not    bool
	Expr   Node
	Values any
}

// InQuery is x [NOT] IN (subquery).
type InQuery struct {
	Not   bool
	Expr  Node
	Query *Select
}

// Between is x [NOT] BETWEEN lower AND upper.
type Between struct {
	Not   bool
	Expr  Node
	Lower Node
	Upper Node
}

// Like is x [NOT] LIKE pattern [ESCAPE 'c'].
type Like struct {
	Not     bool
	Expr    Node
	Pattern Node
	Escape  rune
}

// Exists is [NOT] EXISTS (subquery).
type Exists struct {
	Not   bool
	Query *Select
}

// Paren wraps an expression in parentheses.
type Paren struct {
	Expr Node
}

// Insert is INSERT INTO table (columns) VALUES (values).
type Insert struct {
	Table   string
	Columns []string
	Values  []Node
}

// Assignment is one SET term of an UPDATE.
type Assignment struct {
	Column string
	Value  Node
}

// Update is UPDATE table SET ... WHERE ...
type Update struct {
	Table string
	Set   []Assignment
	Where Node
}

func (*Select) sqlNode()   {}
func (*Table) sqlNode()    {}
func (*Derived) sqlNode()  {}
func (*Join) sqlNode()     {}
func (*Column) sqlNode()   {}
func (*Star) sqlNode()     {}
func (*Value) sqlNode()    {}
func (*Text) sqlNode()     {}
func (*Function) sqlNode() {}
func (*Op) sqlNode()       {}
func (*Unary) sqlNode()    {}
func (*Bool) sqlNode()     {}
func (*InList) sqlNode()   {}
func (*InQuery) sqlNode()  {}
func (*Between) sqlNode()  {}
func (*Like) sqlNode()     {}
func (*Exists) sqlNode()   {}
func (*Paren) sqlNode()    {}
func (*Insert) sqlNode()   {}
func (*Update) sqlNode()   {}

// And joins the non-nil operands with AND. It returns nil for none and the
// operand itself for one.
func And(operands ...Node) Node { return joinBool("AND", operands) }

// Or joins the non-nil operands with OR.
func Or(operands ...Node) Node { return joinBool("OR", operands) }

func joinBool(op string, operands []Node) Node {
	var out []Node
	for _, o := range operands {
		if o == nil {
			continue
		}
		if b, ok := o.(*Bool); ok && b.Op == op {
			out = append(out, b.Operands...)
			continue
		}
		out = append(out, o)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return &Bool{Op: op, Operands: out}
}

// Col is a qualified column reference.
func Col(table, name string) *Column { return &Column{Table: table, Name: name} }

// Eq is left = right.
func Eq(left, right Node) *Op { return &Op{Op: "=", Left: left, Right: right} }
