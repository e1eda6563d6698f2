package exp

import "fmt"

// Expression is a node of an expression tree.
//
// This is a sealed interface: only types in this package implement it.
type Expression interface {
	fmt.Stringer
	expressionNode()
}

// Path references an object property ("artist.name") or, when DB is set, a
// column of the root entity's table.
//
// A "+" suffix on a relationship segment requests an outer join
// ("paintings+.title").
type Path struct {
	Name string
	DB   bool
}

// Scalar is a literal value. A nil Value is SQL NULL.
type Scalar struct {
	Value any
}

// Param is a named placeholder ("$name") replaced by Params.
type Param struct {
	Name string
}

// CompareOp is a binary comparison operator.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op CompareOp) String() string {
	switch op {
	case Eq:
		return "="
	case Ne:
		return "<>"
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	}
	return fmt.Sprintf("CompareOp(%d)", int(op))
}

// Comparison compares two operands. Eq and Ne against a literal NULL mean
// IS NULL and IS NOT NULL.
type Comparison struct {
	Op    CompareOp
	Left  Expression
	Right Expression
}

// Like matches Left against a pattern where % matches any sequence and _
// matches one character. Escape, when non-zero, makes the following
// character literal.
type Like struct {
	Not        bool
	IgnoreCase bool
	Left       Expression
	Pattern    Expression
	Escape     rune
}

// In tests membership. Right is a *List, a *Scalar holding a slice, a *Param
// or a *Subquery.
type In struct {
	Not   bool
	Left  Expression
	Right Expression
}

// Between tests Lower <= Expr <= Upper.
type Between struct {
	Not   bool
	Expr  Expression
	Lower Expression
	Upper Expression
}

// BoolOp combines operands of a Bool node.
type BoolOp int

const (
	And BoolOp = iota
	Or
)

func (op BoolOp) String() string {
	if op == Or {
		return "or"
	}
	return "and"
}

// Bool joins two or more operands with AND or OR.
type Bool struct {
	Op       BoolOp
	Operands []Expression
}

// Not negates its operand.
type Not struct {
	Operand Expression
}

// Function calls a portable scalar function. Names are the Func* constants;
// dialects map them to vendor syntax.
type Function struct {
	Name string
	Args []Expression
}

// Portable function names.
const (
	FuncUpper            = "UPPER"
	FuncLower            = "LOWER"
	FuncLength           = "LENGTH"
	FuncTrim             = "TRIM"
	FuncConcat           = "CONCAT"
	FuncSubstring        = "SUBSTRING"
	FuncLocate           = "LOCATE"
	FuncAbs              = "ABS"
	FuncSqrt             = "SQRT"
	FuncMod              = "MOD"
	FuncCurrentDate      = "CURRENT_DATE"
	FuncCurrentTime      = "CURRENT_TIME"
	FuncCurrentTimestamp = "CURRENT_TIMESTAMP"
	FuncYear             = "YEAR"
	FuncMonth            = "MONTH"
	FuncWeek             = "WEEK"
	FuncDayOfYear        = "DAY_OF_YEAR"
	FuncDayOfMonth       = "DAY_OF_MONTH"
	FuncDayOfWeek        = "DAY_OF_WEEK"
	FuncHour             = "HOUR"
	FuncMinute           = "MINUTE"
	FuncSecond           = "SECOND"
)

// AggregateFunc names an aggregate.
type AggregateFunc string

const (
	Count AggregateFunc = "COUNT"
	Sum   AggregateFunc = "SUM"
	Avg   AggregateFunc = "AVG"
	Min   AggregateFunc = "MIN"
	Max   AggregateFunc = "MAX"
)

// Aggregate applies an aggregate function. A nil Arg with Count is COUNT(*).
type Aggregate struct {
	Func     AggregateFunc
	Arg      Expression
	Distinct bool
}

// List is a literal list, the right side of IN.
type List struct {
	Values []Expression
}

// Subquery selects Column from Entity rows matching Where. It appears under
// In and Exists. Subqueries are uncorrelated.
type Subquery struct {
	Entity string
	Column Expression
	Where  Expression
}

// Exists is true when its subquery returns at least one row.
type Exists struct {
	Query *Subquery
}

func (*Path) expressionNode()       {}
func (*Scalar) expressionNode()     {}
func (*Param) expressionNode()      {}
func (*Comparison) expressionNode() {}
func (*Like) expressionNode()       {}
func (*In) expressionNode()         {}
func (*Between) expressionNode()    {}
func (*Bool) expressionNode()       {}
func (*Not) expressionNode()        {}
func (*Function) expressionNode()   {}
func (*Aggregate) expressionNode()  {}
func (*List) expressionNode()       {}
func (*Subquery) expressionNode()   {}
func (*Exists) expressionNode()     {}

func (n *Path) String() string       { return Format(n) }
func (n *Scalar) String() string     { return Format(n) }
func (n *Param) String() string      { return Format(n) }
func (n *Comparison) String() string { return Format(n) }
func (n *Like) String() string       { return Format(n) }
func (n *In) String() string         { return Format(n) }
func (n *Between) String() string    { return Format(n) }
func (n *Bool) String() string       { return Format(n) }
func (n *Not) String() string        { return Format(n) }
func (n *Function) String() string   { return Format(n) }
func (n *Aggregate) String() string  { return Format(n) }
func (n *List) String() string       { return Format(n) }
func (n *Subquery) String() string   { return Format(n) }
func (n *Exists) String() string     { return Format(n) }

// AndOf joins expressions with AND, skipping nils. It returns nil for no
// operands and the operand itself for one.
func AndOf(exprs ...Expression) Expression {
	return join(And, exprs)
}

// OrOf joins expressions with OR, skipping nils.
func OrOf(exprs ...Expression) Expression {
	return join(Or, exprs)
}

func join(op BoolOp, exprs []Expression) Expression {
	var operands []Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if b, ok := e.(*Bool); ok && b.Op == op {
			operands = append(operands, b.Operands...)
			continue
		}
		operands = append(operands, e)
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	return &Bool{Op: op, Operands: operands}
}

// NotOf negates e.
func NotOf(e Expression) Expression {
	return &Not{Operand: e}
}

// PathOf returns an object path expression.
func PathOf(name string) *Path {
	return &Path{Name: name}
}

// DBPathOf returns a column path expression.
func DBPathOf(column string) *Path {
	return &Path{Name: column, DB: true}
}

// Val returns a literal expression.
func Val(v any) *Scalar {
	return &Scalar{Value: v}
}

// IsNullLiteral reports whether e is a literal NULL.
func IsNullLiteral(e Expression) bool {
	s, ok := e.(*Scalar)
	return ok && s.Value == nil
}
