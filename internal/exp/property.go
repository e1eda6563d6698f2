package exp

import (
	"reflect"
	"strings"
	"time"
)

// Property is a typed handle on an object path, or on a computed expression,
// used to build qualifiers and orderings fluently:
//
//	name := exp.NewStringProperty("artistName")
//	born := exp.NewDateProperty("dateOfBirth")
//	q := exp.AndOf(name.LikeIgnoreCase("pic%"), born.Year().Lt(1900))
//
// A Property owns its expression and hands out a fresh copy on every call,
// so expressions built from one property never share nodes.
type Property[T any] struct {
	name string
	expr Expression
}

// Named is anything with a property path name.
type Named interface {
	Name() string
}

type pathProperty[P any] interface {
	Named
	withName(name string) P
}

// NewProperty returns a property for an object path.
func NewProperty[T any](name string) Property[T] {
	return Property[T]{name: name}
}

// PropertyOf returns a property computed by e.
func PropertyOf[T any](e Expression) Property[T] {
	return Property[T]{name: Format(e), expr: DeepCopy(e)}
}

// Dot appends child's path to parent's, keeping child's property type.
func Dot[P pathProperty[P]](parent Named, child P) P {
	return child.withName(parent.Name() + "." + child.Name())
}

// Name returns the property path, or the formatted expression for computed
// properties.
func (p Property[T]) Name() string { return p.name }

// Type returns the Go type of the property values.
func (p Property[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

// Expression returns a new expression tree for the property.
func (p Property[T]) Expression() Expression {
	if p.expr != nil {
		return DeepCopy(p.expr)
	}
	return &Path{Name: p.name}
}

func (p Property[T]) withName(name string) Property[T] { return NewProperty[T](name) }

// Outer marks the last path segment for an outer join.
func (p Property[T]) Outer() Property[T] {
	if p.expr != nil || strings.HasSuffix(p.name, "+") {
		return p
	}
	return NewProperty[T](p.name + "+")
}

func (p Property[T]) cmp(op CompareOp, v any) Expression {
	return &Comparison{Op: op, Left: p.Expression(), Right: literal(v)}
}

func (p Property[T]) Eq(v T) Expression { return p.cmp(Eq, v) }
func (p Property[T]) Ne(v T) Expression { return p.cmp(Ne, v) }
func (p Property[T]) Lt(v T) Expression { return p.cmp(Lt, v) }
func (p Property[T]) Le(v T) Expression { return p.cmp(Le, v) }
func (p Property[T]) Gt(v T) Expression { return p.cmp(Gt, v) }
func (p Property[T]) Ge(v T) Expression { return p.cmp(Ge, v) }

// IsNull matches NULL values.
func (p Property[T]) IsNull() Expression { return p.cmp(Eq, nil) }

// IsNotNull matches non-NULL values.
func (p Property[T]) IsNotNull() Expression { return p.cmp(Ne, nil) }

// EqParam compares with a named parameter.
func (p Property[T]) EqParam(name string) Expression {
	return &Comparison{Op: Eq, Left: p.Expression(), Right: &Param{Name: name}}
}

// EqProp compares two properties.
func (p Property[T]) EqProp(o Property[T]) Expression {
	return &Comparison{Op: Eq, Left: p.Expression(), Right: o.Expression()}
}

// NeProp compares two properties for inequality.
func (p Property[T]) NeProp(o Property[T]) Expression {
	return &Comparison{Op: Ne, Left: p.Expression(), Right: o.Expression()}
}

// In matches any of values. The values are kept as one bound slice.
func (p Property[T]) In(values ...T) Expression {
	return &In{Left: p.Expression(), Right: &Scalar{Value: append([]T(nil), values...)}}
}

// NotIn matches none of values.
func (p Property[T]) NotIn(values ...T) Expression {
	return &In{Not: true, Left: p.Expression(), Right: &Scalar{Value: append([]T(nil), values...)}}
}

// InParam matches any value of a parameter bound to a slice.
func (p Property[T]) InParam(name string) Expression {
	return &In{Left: p.Expression(), Right: &Param{Name: name}}
}

// Between matches lo <= v <= hi.
func (p Property[T]) Between(lo, hi T) Expression {
	return &Between{Expr: p.Expression(), Lower: literal(lo), Upper: literal(hi)}
}

func (p Property[T]) Asc() Ordering  { return Ordering{Expr: p.Expression()} }
func (p Property[T]) Desc() Ordering { return Ordering{Expr: p.Expression(), Desc: true} }

func (p Property[T]) AscInsensitive() Ordering {
	return Ordering{Expr: p.Expression(), IgnoreCase: true}
}

func (p Property[T]) DescInsensitive() Ordering {
	return Ordering{Expr: p.Expression(), Desc: true, IgnoreCase: true}
}

// Count counts non-NULL values.
func (p Property[T]) Count() NumericProperty[int64] {
	return numeric[int64](&Aggregate{Func: Count, Arg: p.Expression()})
}

// CountDistinct counts distinct non-NULL values.
func (p Property[T]) CountDistinct() NumericProperty[int64] {
	return numeric[int64](&Aggregate{Func: Count, Arg: p.Expression(), Distinct: true})
}

func (p Property[T]) Min() Property[T] {
	return PropertyOf[T](&Aggregate{Func: Min, Arg: p.Expression()})
}

func (p Property[T]) Max() Property[T] {
	return PropertyOf[T](&Aggregate{Func: Max, Arg: p.Expression()})
}

// CountAll is COUNT(*).
func CountAll() NumericProperty[int64] {
	return numeric[int64](&Aggregate{Func: Count})
}

// literal wraps v, turning typed nil pointers into a NULL literal.
func literal(v any) *Scalar {
	if v == nil {
		return &Scalar{}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return &Scalar{}
		}
	}
	return &Scalar{Value: v}
}

// StringProperty adds string functions and pattern matching.
type StringProperty struct {
	Property[string]
}

func NewStringProperty(name string) StringProperty {
	return StringProperty{NewProperty[string](name)}
}

func stringOf(e Expression) StringProperty {
	return StringProperty{PropertyOf[string](e)}
}

func (p StringProperty) withName(name string) StringProperty { return NewStringProperty(name) }

func (p StringProperty) Outer() StringProperty {
	return StringProperty{p.Property.Outer()}
}

func (p StringProperty) like(pattern string, escape rune, not, ignoreCase bool) Expression {
	return &Like{
		Not:        not,
		IgnoreCase: ignoreCase,
		Left:       p.Expression(),
		Pattern:    &Scalar{Value: pattern},
		Escape:     escape,
	}
}

func (p StringProperty) Like(pattern string) Expression {
	return p.like(pattern, 0, false, false)
}

func (p StringProperty) LikeIgnoreCase(pattern string) Expression {
	return p.like(pattern, 0, false, true)
}

func (p StringProperty) NotLike(pattern string) Expression {
	return p.like(pattern, 0, true, false)
}

func (p StringProperty) NotLikeIgnoreCase(pattern string) Expression {
	return p.like(pattern, 0, true, true)
}

// LikeEscape matches a pattern that uses escape to quote wildcards.
func (p StringProperty) LikeEscape(pattern string, escape rune) Expression {
	return p.like(pattern, escape, false, false)
}

// likeEscapeChar quotes wildcards in StartsWith, EndsWith and Contains.
const likeEscapeChar = '!'

// EscapeLike quotes %, _ and the escape character itself in s.
func EscapeLike(s string, escape rune) string {
	var b strings.Builder
	for _, r := range s {
		if r == '%' || r == '_' || r == escape {
			b.WriteRune(escape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p StringProperty) StartsWith(prefix string) Expression {
	return p.like(EscapeLike(prefix, likeEscapeChar)+"%", likeEscapeChar, false, false)
}

func (p StringProperty) EndsWith(suffix string) Expression {
	return p.like("%"+EscapeLike(suffix, likeEscapeChar), likeEscapeChar, false, false)
}

func (p StringProperty) Contains(s string) Expression {
	return p.like("%"+EscapeLike(s, likeEscapeChar)+"%", likeEscapeChar, false, false)
}

func (p StringProperty) ContainsIgnoreCase(s string) Expression {
	return p.like("%"+EscapeLike(s, likeEscapeChar)+"%", likeEscapeChar, false, true)
}

func (p StringProperty) Upper() StringProperty {
	return stringOf(&Function{Name: FuncUpper, Args: []Expression{p.Expression()}})
}

func (p StringProperty) Lower() StringProperty {
	return stringOf(&Function{Name: FuncLower, Args: []Expression{p.Expression()}})
}

func (p StringProperty) Trim() StringProperty {
	return stringOf(&Function{Name: FuncTrim, Args: []Expression{p.Expression()}})
}

func (p StringProperty) Length() NumericProperty[int64] {
	return numeric[int64](&Function{Name: FuncLength, Args: []Expression{p.Expression()}})
}

// Concat appends literal strings or other properties.
func (p StringProperty) Concat(parts ...any) StringProperty {
	args := []Expression{p.Expression()}
	for _, part := range parts {
		switch x := part.(type) {
		case Named:
			args = append(args, exprOf(x))
		case Expression:
			args = append(args, DeepCopy(x))
		default:
			args = append(args, literal(x))
		}
	}
	return stringOf(&Function{Name: FuncConcat, Args: args})
}

// Substring takes length characters starting at the 1-based offset.
func (p StringProperty) Substring(offset, length int) StringProperty {
	return stringOf(&Function{Name: FuncSubstring, Args: []Expression{
		p.Expression(), &Scalar{Value: int64(offset)}, &Scalar{Value: int64(length)},
	}})
}

// Locate returns the 1-based position of sub in the property, or 0.
func (p StringProperty) Locate(sub string) NumericProperty[int64] {
	return numeric[int64](&Function{Name: FuncLocate, Args: []Expression{&Scalar{Value: sub}, p.Expression()}})
}

func exprOf(n Named) Expression {
	if e, ok := n.(interface{ Expression() Expression }); ok {
		return e.Expression()
	}
	return &Path{Name: n.Name()}
}

// NumericProperty adds arithmetic functions and numeric aggregates.
type NumericProperty[T any] struct {
	Property[T]
}

func NewNumericProperty[T any](name string) NumericProperty[T] {
	return NumericProperty[T]{NewProperty[T](name)}
}

func numeric[T any](e Expression) NumericProperty[T] {
	return NumericProperty[T]{PropertyOf[T](e)}
}

func (p NumericProperty[T]) withName(name string) NumericProperty[T] {
	return NewNumericProperty[T](name)
}

func (p NumericProperty[T]) Outer() NumericProperty[T] {
	return NumericProperty[T]{p.Property.Outer()}
}

func (p NumericProperty[T]) Sum() NumericProperty[T] {
	return numeric[T](&Aggregate{Func: Sum, Arg: p.Expression()})
}

func (p NumericProperty[T]) Avg() NumericProperty[float64] {
	return numeric[float64](&Aggregate{Func: Avg, Arg: p.Expression()})
}

func (p NumericProperty[T]) Min() NumericProperty[T] {
	return numeric[T](&Aggregate{Func: Min, Arg: p.Expression()})
}

func (p NumericProperty[T]) Max() NumericProperty[T] {
	return numeric[T](&Aggregate{Func: Max, Arg: p.Expression()})
}

func (p NumericProperty[T]) Abs() NumericProperty[T] {
	return numeric[T](&Function{Name: FuncAbs, Args: []Expression{p.Expression()}})
}

func (p NumericProperty[T]) Sqrt() NumericProperty[float64] {
	return numeric[float64](&Function{Name: FuncSqrt, Args: []Expression{p.Expression()}})
}

func (p NumericProperty[T]) Mod(n T) NumericProperty[T] {
	return numeric[T](&Function{Name: FuncMod, Args: []Expression{p.Expression(), literal(n)}})
}

// DateProperty adds date part extraction.
type DateProperty struct {
	Property[time.Time]
}

func NewDateProperty(name string) DateProperty {
	return DateProperty{NewProperty[time.Time](name)}
}

func (p DateProperty) withName(name string) DateProperty { return NewDateProperty(name) }

func (p DateProperty) part(fn string) NumericProperty[int64] {
	return numeric[int64](&Function{Name: fn, Args: []Expression{p.Expression()}})
}

func (p DateProperty) Year() NumericProperty[int64]       { return p.part(FuncYear) }
func (p DateProperty) Month() NumericProperty[int64]      { return p.part(FuncMonth) }
func (p DateProperty) Week() NumericProperty[int64]       { return p.part(FuncWeek) }
func (p DateProperty) DayOfYear() NumericProperty[int64]  { return p.part(FuncDayOfYear) }
func (p DateProperty) DayOfMonth() NumericProperty[int64] { return p.part(FuncDayOfMonth) }
func (p DateProperty) DayOfWeek() NumericProperty[int64]  { return p.part(FuncDayOfWeek) }
func (p DateProperty) Hour() NumericProperty[int64]       { return p.part(FuncHour) }
func (p DateProperty) Minute() NumericProperty[int64]     { return p.part(FuncMinute) }
func (p DateProperty) Second() NumericProperty[int64]     { return p.part(FuncSecond) }
