package exp

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

var functionNames = map[string]string{}

func init() {
	for _, name := range []string{
		FuncUpper, FuncLower, FuncLength, FuncTrim, FuncConcat, FuncSubstring,
		FuncLocate, FuncAbs, FuncSqrt, FuncMod, FuncCurrentDate, FuncCurrentTime,
		FuncCurrentTimestamp, FuncYear, FuncMonth, FuncWeek, FuncDayOfYear,
		FuncDayOfMonth, FuncDayOfWeek, FuncHour, FuncMinute, FuncSecond,
	} {
		functionNames[normalizeName(name)] = name
	}
}

var aggregateNames = map[string]AggregateFunc{
	"count": Count,
	"sum":   Sum,
	"avg":   Avg,
	"min":   Min,
	"max":   Max,
}

func normalizeName(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// Parse parses the expression string syntax:
//
//	name like 'A%' and (price >= 10.5 or artist.name in ('x', 'y'))
//	paintings+.title is compared with outer join semantics
//	db:ARTIST_ID = $id
//	upper(name) likeIgnoreCase $pattern escape '!'
//	year(dateOfBirth) between 1880 and 1900
//	exists (select * from Painting where estimatedPrice > 1000)
//
// Keywords are case-insensitive.
func Parse(s string) (Expression, error) {
	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &ParseError{Pos: 0, Msg: "empty expression"}
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return e, nil
}

// MustParse is like Parse but panics on error. It is meant for
// expressions written in code and tests.
func MustParse(s string) Expression {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, got %q", what, t.text)
	}
	return t, nil
}

func (p *parser) expectKeyword(kw string) error {
	t := p.next()
	if !t.is(kw) {
		return p.errorf(t, "expected %q, got %q", kw, t.text)
	}
	return nil
}

func (p *parser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []Expression{left}
	for p.peek().is("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return &Bool{Op: Or, Operands: operands}, nil
}

func (p *parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands := []Expression{left}
	for p.peek().is("and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return &Bool{Op: And, Operands: operands}, nil
}

func (p *parser) parseNot() (Expression, error) {
	if t := p.peek(); t.is("not") || t.kind == tokBang {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (Expression, error) {
	if p.peek().is("exists") {
		p.next()
		sub, err := p.parseSubquery()
		if err != nil {
			return nil, err
		}
		return &Exists{Query: sub}, nil
	}

	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	if t.kind == tokOp {
		p.next()
		op, err := compareOp(t)
		if err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: op, Left: left, Right: right}, nil
	}

	not := false
	if t.is("not") {
		after := p.peekAt(1)
		if after.is("like") || after.is("likeIgnoreCase") || after.is("in") || after.is("between") {
			p.next()
			not = true
			t = p.peek()
		}
	}

	switch {
	case t.is("like"), t.is("likeIgnoreCase"):
		p.next()
		pattern, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		like := &Like{Not: not, IgnoreCase: t.is("likeIgnoreCase"), Left: left, Pattern: pattern}
		if p.peek().is("escape") {
			p.next()
			et, err := p.expect(tokString, "escape character")
			if err != nil {
				return nil, err
			}
			if utf8.RuneCountInString(et.text) != 1 {
				return nil, p.errorf(et, "escape must be a single character")
			}
			like.Escape, _ = utf8.DecodeRuneInString(et.text)
		}
		return like, nil
	case t.is("in"):
		p.next()
		right, err := p.parseInOperand()
		if err != nil {
			return nil, err
		}
		return &In{Not: not, Left: left, Right: right}, nil
	case t.is("between"):
		p.next()
		lower, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("and"); err != nil {
			return nil, err
		}
		upper, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &Between{Not: not, Expr: left, Lower: lower, Upper: upper}, nil
	}
	return left, nil
}

func compareOp(t token) (CompareOp, error) {
	switch t.text {
	case "=", "==":
		return Eq, nil
	case "<>", "!=":
		return Ne, nil
	case "<":
		return Lt, nil
	case "<=":
		return Le, nil
	case ">":
		return Gt, nil
	case ">=":
		return Ge, nil
	}
	return 0, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("unknown operator %q", t.text)}
}

func (p *parser) parseInOperand() (Expression, error) {
	t := p.peek()
	switch t.kind {
	case tokParam:
		p.next()
		return &Param{Name: t.text}, nil
	case tokLParen:
		if p.peekAt(1).is("select") {
			return p.parseSubquery()
		}
		p.next()
		list := &List{}
		if p.peek().kind == tokRParen {
			p.next()
			return list, nil
		}
		for {
			v, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			list.Values = append(list.Values, v)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return list, nil
		}
	}
	return nil, p.errorf(t, "expected list, parameter or subquery after 'in'")
}

// parseSubquery parses "(select <column|*> from Entity [where <expr>])".
func (p *parser) parseSubquery() (*Subquery, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("select"); err != nil {
		return nil, err
	}
	sub := &Subquery{}
	if p.peek().kind == tokStar {
		p.next()
	} else {
		col, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		sub.Column = col
	}
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	et, err := p.expect(tokIdent, "entity name")
	if err != nil {
		return nil, err
	}
	sub.Entity = et.text
	if p.peek().is("where") {
		p.next()
		where, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		sub.Where = where
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return sub, nil
}

func (p *parser) parsePrimary() (Expression, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case tokParam:
		return &Param{Name: t.text}, nil
	case tokString:
		return &Scalar{Value: t.text}, nil
	case tokNumber:
		return parseNumber(t)
	case tokIdent:
		switch {
		case t.is("null"):
			return &Scalar{Value: nil}, nil
		case t.is("true"):
			return &Scalar{Value: true}, nil
		case t.is("false"):
			return &Scalar{Value: false}, nil
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return parsePath(t)
	}
	if t.kind == tokEOF {
		return nil, p.errorf(t, "unexpected end of expression")
	}
	return nil, p.errorf(t, "unexpected %q", t.text)
}

func (p *parser) parseCall(name token) (Expression, error) {
	p.next() // (
	key := normalizeName(name.text)

	if fn, ok := aggregateNames[key]; ok {
		agg := &Aggregate{Func: fn}
		if p.peek().is("distinct") {
			p.next()
			agg.Distinct = true
		}
		if p.peek().kind == tokStar {
			if fn != Count {
				return nil, p.errorf(p.peek(), "only count accepts *")
			}
			p.next()
		} else {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			agg.Arg = arg
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return agg, nil
	}

	fname, ok := functionNames[key]
	if !ok {
		return nil, &ParseError{Pos: name.pos, Msg: fmt.Sprintf("%v: %s", ErrUnknownFunction, name.text)}
	}
	fn := &Function{Name: fname}
	if p.peek().kind == tokRParen {
		p.next()
	} else {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			fn.Args = append(fn.Args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
	}
	if err := CheckArity(fname, len(fn.Args)); err != nil {
		return nil, &ParseError{Pos: name.pos, Msg: err.Error()}
	}
	return fn, nil
}

func parsePath(t token) (Expression, error) {
	name := t.text
	db := false
	if len(name) > 3 && strings.EqualFold(name[:3], "db:") {
		name, db = name[3:], true
	} else if len(name) > 4 && strings.EqualFold(name[:4], "obj:") {
		name = name[4:]
	}
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return nil, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("malformed path %q", t.text)}
	}
	return &Path{Name: name, DB: db}, nil
}

func parseNumber(t token) (Expression, error) {
	if !strings.ContainsAny(t.text, ".eE") {
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return &Scalar{Value: n}, nil
		}
		if bi, ok := new(big.Int).SetString(t.text, 10); ok {
			return &Scalar{Value: bi}, nil
		}
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("malformed number %q", t.text)}
	}
	return &Scalar{Value: f}, nil
}
