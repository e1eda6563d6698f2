package exp

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
	"github.com/spf13/cast"

	"github.com/roach88/ormql/internal/access"
	"github.com/roach88/ormql/internal/value"
)

var decimalContext = apd.BaseContext.WithPrecision(34)

// callFunction computes a portable function in memory. NULL arguments yield
// NULL, as in SQL.
func callFunction(name string, args []any, now time.Time) (any, error) {
	if err := CheckArity(name, len(args)); err != nil {
		return nil, err
	}
	switch name {
	case FuncCurrentDate:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	case FuncCurrentTime, FuncCurrentTimestamp:
		return now, nil
	}

	for _, a := range args {
		if a == nil {
			return nil, nil
		}
	}

	switch name {
	case FuncUpper, FuncLower, FuncLength, FuncTrim:
		s, err := cast.ToStringE(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		switch name {
		case FuncUpper:
			return strings.ToUpper(s), nil
		case FuncLower:
			return strings.ToLower(s), nil
		case FuncLength:
			return int64(utf8.RuneCountInString(s)), nil
		}
		return strings.Trim(s, " "), nil

	case FuncConcat:
		var b strings.Builder
		for _, a := range args {
			s, err := cast.ToStringE(a)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			b.WriteString(s)
		}
		return b.String(), nil

	case FuncSubstring:
		return substring(args)

	case FuncLocate:
		return locate(args)

	case FuncAbs:
		d, ok := value.Decimal(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: %v is not a number", name, args[0])
		}
		out := new(apd.Decimal)
		if _, err := decimalContext.Abs(out, d); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return out, nil

	case FuncSqrt:
		f, err := cast.ToFloat64E(numberArg(args[0]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if f < 0 {
			return nil, nil
		}
		return math.Sqrt(f), nil

	case FuncMod:
		a, err := cast.ToInt64E(numberArg(args[0]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		b, err := cast.ToInt64E(numberArg(args[1]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if b == 0 {
			return nil, nil
		}
		return a % b, nil

	case FuncYear, FuncMonth, FuncWeek, FuncDayOfYear, FuncDayOfMonth,
		FuncDayOfWeek, FuncHour, FuncMinute, FuncSecond:
		t, err := cast.ToTimeE(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return datePart(name, t), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
}

// functionArity holds the accepted argument counts of each portable
// function. A maximum of -1 is unbounded.
var functionArity = map[string][2]int{
	FuncUpper:            {1, 1},
	FuncLower:            {1, 1},
	FuncLength:           {1, 1},
	FuncTrim:             {1, 1},
	FuncConcat:           {1, -1},
	FuncSubstring:        {2, 3},
	FuncLocate:           {2, 3},
	FuncAbs:              {1, 1},
	FuncSqrt:             {1, 1},
	FuncMod:              {2, 2},
	FuncCurrentDate:      {0, 0},
	FuncCurrentTime:      {0, 0},
	FuncCurrentTimestamp: {0, 0},
	FuncYear:             {1, 1},
	FuncMonth:            {1, 1},
	FuncWeek:             {1, 1},
	FuncDayOfYear:        {1, 1},
	FuncDayOfMonth:       {1, 1},
	FuncDayOfWeek:        {1, 1},
	FuncHour:             {1, 1},
	FuncMinute:           {1, 1},
	FuncSecond:           {1, 1},
}

// CheckArity returns an ErrArity error when the portable function name
// does not accept n arguments. Other names are not checked.
func CheckArity(name string, n int) error {
	r, ok := functionArity[name]
	if !ok {
		return nil
	}
	lo, hi := r[0], r[1]
	switch {
	case hi < 0 && n < lo:
		return fmt.Errorf("%w: %s expects at least %d, got %d", ErrArity, name, lo, n)
	case hi >= 0 && (n < lo || n > hi) && lo == hi:
		return fmt.Errorf("%w: %s expects %d, got %d", ErrArity, name, lo, n)
	case hi >= 0 && (n < lo || n > hi):
		return fmt.Errorf("%w: %s expects %d to %d, got %d", ErrArity, name, lo, hi, n)
	}
	return nil
}

// numberArg converts decimals to strings so cast can parse them.
func numberArg(v any) any {
	switch d := v.(type) {
	case *apd.Decimal:
		return d.Text('f')
	case apd.Decimal:
		return d.Text('f')
	}
	return v
}

func substring(args []any) (any, error) {
	s, err := cast.ToStringE(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FuncSubstring, err)
	}
	start, err := cast.ToIntE(numberArg(args[1]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FuncSubstring, err)
	}
	runes := []rune(s)
	from := max(start-1, 0)
	if from > len(runes) {
		return "", nil
	}
	to := len(runes)
	if len(args) == 3 {
		n, err := cast.ToIntE(numberArg(args[2]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", FuncSubstring, err)
		}
		to = min(from+max(n, 0), len(runes))
	}
	return string(runes[from:to]), nil
}

// locate returns the 1-based position of args[0] in args[1], or 0.
func locate(args []any) (any, error) {
	sub, err := cast.ToStringE(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FuncLocate, err)
	}
	s, err := cast.ToStringE(args[1])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FuncLocate, err)
	}
	offset := 0
	if len(args) == 3 {
		start, err := cast.ToIntE(numberArg(args[2]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", FuncLocate, err)
		}
		offset = max(start-1, 0)
	}
	runes := []rune(s)
	if offset > len(runes) {
		return int64(0), nil
	}
	i := strings.Index(string(runes[offset:]), sub)
	if i < 0 {
		return int64(0), nil
	}
	return int64(offset + utf8.RuneCountInString(string(runes[offset:])[:i]) + 1), nil
}

func datePart(name string, t time.Time) int64 {
	switch name {
	case FuncYear:
		return int64(t.Year())
	case FuncMonth:
		return int64(t.Month())
	case FuncWeek:
		_, w := t.ISOWeek()
		return int64(w)
	case FuncDayOfYear:
		return int64(t.YearDay())
	case FuncDayOfMonth:
		return int64(t.Day())
	case FuncDayOfWeek:
		return int64(t.Weekday()) + 1
	case FuncHour:
		return int64(t.Hour())
	case FuncMinute:
		return int64(t.Minute())
	}
	return int64(t.Second())
}

// aggregate computes n over the evaluator's root, which is treated as the
// collection of rows.
func (ev *evaluator) aggregate(n *Aggregate) (any, error) {
	items := []any{ev.root}
	if access.IsToMany(ev.root) {
		items = access.Elements(ev.root)
	}
	if n.Arg == nil {
		return int64(len(items)), nil
	}

	var values []any
	for _, item := range items {
		sub := &evaluator{root: item, now: ev.now}
		v, err := sub.value(n.Arg)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if n.Distinct && containsValue(values, v) {
			continue
		}
		values = append(values, v)
	}

	switch n.Func {
	case Count:
		return int64(len(values)), nil
	case Min, Max:
		var best any
		for _, v := range values {
			if best == nil {
				best = v
				continue
			}
			c, err := value.Compare(v, best)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", n.Func, err)
			}
			if (n.Func == Min && c < 0) || (n.Func == Max && c > 0) {
				best = v
			}
		}
		return best, nil
	case Sum, Avg:
		if len(values) == 0 {
			return nil, nil
		}
		total := new(apd.Decimal)
		for _, v := range values {
			d, ok := value.Decimal(v)
			if !ok {
				return nil, fmt.Errorf("%s: %v is not a number", n.Func, v)
			}
			if _, err := decimalContext.Add(total, total, d); err != nil {
				return nil, fmt.Errorf("%s: %w", n.Func, err)
			}
		}
		if n.Func == Sum {
			return total, nil
		}
		avg := new(apd.Decimal)
		if _, err := decimalContext.Quo(avg, total, apd.New(int64(len(values)), 0)); err != nil {
			return nil, fmt.Errorf("%s: %w", n.Func, err)
		}
		return avg, nil
	}
	return nil, fmt.Errorf("evaluate: unknown aggregate %s", n.Func)
}

func containsValue(values []any, v any) bool {
	for _, x := range values {
		if value.Equal(x, v) {
			return true
		}
	}
	return false
}
