package exp

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

const (
	precOr = iota + 1
	precAnd
	precNot
	precPredicate
	precPrimary
)

// Format renders e in the string syntax accepted by Parse.
func Format(e Expression) string {
	var b strings.Builder
	format(&b, e, 0)
	return b.String()
}

func precedence(e Expression) int {
	switch n := e.(type) {
	case *Bool:
		if n.Op == Or {
			return precOr
		}
		return precAnd
	case *Not:
		return precNot
	case *Comparison, *Like, *In, *Between, *Exists:
		return precPredicate
	}
	return precPrimary
}

func format(b *strings.Builder, e Expression, minPrec int) {
	if e == nil {
		b.WriteString("<nil>")
		return
	}
	if precedence(e) < minPrec {
		b.WriteByte('(')
		defer b.WriteByte(')')
	}

	switch n := e.(type) {
	case *Path:
		if n.DB {
			b.WriteString("db:")
		}
		b.WriteString(n.Name)
	case *Scalar:
		formatLiteral(b, n.Value)
	case *Param:
		b.WriteByte('$')
		b.WriteString(n.Name)
	case *Comparison:
		format(b, n.Left, precPrimary)
		b.WriteByte(' ')
		b.WriteString(n.Op.String())
		b.WriteByte(' ')
		format(b, n.Right, precPrimary)
	case *Like:
		format(b, n.Left, precPrimary)
		if n.Not {
			b.WriteString(" not")
		}
		if n.IgnoreCase {
			b.WriteString(" likeIgnoreCase ")
		} else {
			b.WriteString(" like ")
		}
		format(b, n.Pattern, precPrimary)
		if n.Escape != 0 {
			b.WriteString(" escape ")
			formatLiteral(b, string(n.Escape))
		}
	case *In:
		format(b, n.Left, precPrimary)
		if n.Not {
			b.WriteString(" not")
		}
		b.WriteString(" in ")
		format(b, n.Right, precPrimary)
	case *Between:
		format(b, n.Expr, precPrimary)
		if n.Not {
			b.WriteString(" not")
		}
		b.WriteString(" between ")
		format(b, n.Lower, precPrimary)
		b.WriteString(" and ")
		format(b, n.Upper, precPrimary)
	case *Bool:
		for i, op := range n.Operands {
			if i > 0 {
				b.WriteByte(' ')
				b.WriteString(n.Op.String())
				b.WriteByte(' ')
			}
			format(b, op, precedence(n)+1)
		}
	case *Not:
		b.WriteString("not ")
		format(b, n.Operand, precNot)
	case *Function:
		b.WriteString(strings.ToLower(n.Name))
		b.WriteByte('(')
		formatList(b, n.Args)
		b.WriteByte(')')
	case *Aggregate:
		b.WriteString(strings.ToLower(string(n.Func)))
		b.WriteByte('(')
		if n.Distinct {
			b.WriteString("distinct ")
		}
		if n.Arg == nil {
			b.WriteByte('*')
		} else {
			format(b, n.Arg, 0)
		}
		b.WriteByte(')')
	case *List:
		b.WriteByte('(')
		formatList(b, n.Values)
		b.WriteByte(')')
	case *Subquery:
		b.WriteString("(select ")
		if n.Column == nil {
			b.WriteByte('*')
		} else {
			format(b, n.Column, 0)
		}
		b.WriteString(" from ")
		b.WriteString(n.Entity)
		if n.Where != nil {
			b.WriteString(" where ")
			format(b, n.Where, 0)
		}
		b.WriteByte(')')
	case *Exists:
		b.WriteString("exists ")
		format(b, n.Query, 0)
	}
}

func formatList(b *strings.Builder, items []Expression) {
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, item, 0)
	}
}

func formatLiteral(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case string:
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(x, "'", "''"))
		b.WriteByte('\'')
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		fmt.Fprintf(b, "%d", x)
	case float32:
		b.WriteString(formatFloat(float64(x), 32))
	case float64:
		b.WriteString(formatFloat(x, 64))
	case *big.Int:
		b.WriteString(x.String())
	case *apd.Decimal:
		b.WriteString(x.Text('f'))
	case time.Time:
		formatLiteral(b, x.Format(time.RFC3339Nano))
	case []byte:
		formatLiteral(b, string(x))
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			b.WriteByte('(')
			for i := 0; i < rv.Len(); i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				formatLiteral(b, rv.Index(i).Interface())
			}
			b.WriteByte(')')
			return
		}
		formatLiteral(b, fmt.Sprint(v))
	}
}

func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}
