// Package value implements the equality and ordering rules shared by the
// in-memory expression evaluator and the result comparison in tests.
//
// Numbers of every Go numeric type are widened to an arbitrary precision
// decimal before they are compared, so int8(1), float32(1), uint64(1),
// big.NewInt(1), big.NewRat(1, 1) and a decimal "1.00" are all equal. Decimal equality ignores
// scale: 1.10 equals 1.1.
package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// ErrIncomparable is returned by Compare when two values have no ordering.
var ErrIncomparable = errors.New("values are not comparable")

// Equaler is implemented by values that define their own equality, such as
// JSON documents that compare by structure rather than by text.
type Equaler interface {
	EqualTo(other any) bool
}

type numKind int

const (
	notNumber numKind = iota
	finite
	nan
	posInf
	negInf
)

// Equal reports whether a and b hold the same value.
//
// Two nils are equal; nil is never equal to a non-nil value. Numbers are
// compared after widening. A number is never equal to a string.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if e, ok := a.(Equaler); ok {
		return e.EqualTo(b)
	}
	if e, ok := b.(Equaler); ok {
		return e.EqualTo(a)
	}

	da, ka := widen(a)
	db, kb := widen(b)
	if ka != notNumber || kb != notNumber {
		if ka == notNumber || kb == notNumber {
			return false
		}
		c, ok := compareNumbers(da, ka, db, kb)
		return ok && c == 0
	}

	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}

	if sa, ok := asString(a); ok {
		sb, ok := asString(b)
		return ok && sa == sb
	}
	if ba, ok := asBool(a); ok {
		bb, ok := asBool(b)
		return ok && ba == bb
	}

	return reflect.DeepEqual(a, b)
}

// Compare orders a relative to b, returning -1, 0 or +1.
//
// Supported pairs are number/number, string/string, bool/bool (false sorts
// first), time/time and []byte/[]byte. Anything else, including nil and NaN,
// returns ErrIncomparable.
func Compare(a, b any) (int, error) {
	if a == nil || b == nil {
		return 0, ErrIncomparable
	}

	da, ka := widen(a)
	db, kb := widen(b)
	if ka != notNumber && kb != notNumber {
		c, ok := compareNumbers(da, ka, db, kb)
		if !ok {
			return 0, ErrIncomparable
		}
		return c, nil
	}
	if ka != notNumber || kb != notNumber {
		return 0, ErrIncomparable
	}

	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
		return 0, ErrIncomparable
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
		return 0, ErrIncomparable
	}

	if sa, ok := asString(a); ok {
		if sb, ok := asString(b); ok {
			return strings.Compare(sa, sb), nil
		}
		return 0, ErrIncomparable
	}
	if ba, ok := asBool(a); ok {
		if bb, ok := asBool(b); ok {
			switch {
			case ba == bb:
				return 0, nil
			case !ba:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	return 0, ErrIncomparable
}

// IsNumber reports whether v is one of the numeric types Equal and Compare
// widen.
func IsNumber(v any) bool {
	_, k := widen(v)
	return k != notNumber
}

// Decimal widens a numeric value to a decimal. It returns false for
// non-numbers, NaN and infinities.
func Decimal(v any) (*apd.Decimal, bool) {
	d, k := widen(v)
	if k != finite {
		return nil, false
	}
	return d, true
}

func compareNumbers(a *apd.Decimal, ka numKind, b *apd.Decimal, kb numKind) (int, bool) {
	if ka == nan || kb == nan {
		return 0, false
	}
	rank := func(k numKind) int {
		switch k {
		case negInf:
			return -1
		case posInf:
			return 1
		}
		return 0
	}
	if ka != finite || kb != finite {
		ra, rb := rank(ka), rank(kb)
		switch {
		case ra < rb:
			return -1, true
		case ra > rb:
			return 1, true
		}
		return 0, true
	}
	return a.Cmp(b), true
}

func widen(v any) (*apd.Decimal, numKind) {
	switch x := v.(type) {
	case int:
		return apd.New(int64(x), 0), finite
	case int8:
		return apd.New(int64(x), 0), finite
	case int16:
		return apd.New(int64(x), 0), finite
	case int32:
		return apd.New(int64(x), 0), finite
	case int64:
		return apd.New(x, 0), finite
	case uint:
		return fromString(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return apd.New(int64(x), 0), finite
	case uint16:
		return apd.New(int64(x), 0), finite
	case uint32:
		return apd.New(int64(x), 0), finite
	case uint64:
		return fromString(strconv.FormatUint(x, 10))
	case float32:
		return fromFloat(float64(x), 32)
	case float64:
		return fromFloat(x, 64)
	case *big.Int:
		if x == nil {
			return nil, notNumber
		}
		return fromString(x.String())
	case big.Int:
		return fromString(x.String())
	case *big.Float:
		if x == nil {
			return nil, notNumber
		}
		if x.IsInf() {
			if x.Sign() < 0 {
				return nil, negInf
			}
			return nil, posInf
		}
		return fromString(x.Text('e', -1))
	case *big.Rat:
		if x == nil {
			return nil, notNumber
		}
		return fromRat(x)
	case big.Rat:
		return fromRat(&x)
	case *apd.Decimal:
		if x == nil {
			return nil, notNumber
		}
		return fromDecimal(x)
	case apd.Decimal:
		return fromDecimal(&x)
	case *atomic.Int32:
		return apd.New(int64(x.Load()), 0), finite
	case *atomic.Int64:
		return apd.New(x.Load(), 0), finite
	case *atomic.Uint32:
		return apd.New(int64(x.Load()), 0), finite
	case *atomic.Uint64:
		return fromString(strconv.FormatUint(x.Load(), 10))
	case json.Number:
		return fromString(string(x))
	}
	return nil, notNumber
}

func fromFloat(f float64, bits int) (*apd.Decimal, numKind) {
	switch {
	case math.IsNaN(f):
		return nil, nan
	case math.IsInf(f, 1):
		return nil, posInf
	case math.IsInf(f, -1):
		return nil, negInf
	}
	return fromString(strconv.FormatFloat(f, 'g', -1, bits))
}

// ratContext bounds the expansion of rationals such as 1/3 that have no
// finite decimal form.
var ratContext = apd.BaseContext.WithPrecision(34)

func fromRat(r *big.Rat) (*apd.Decimal, numKind) {
	if r.IsInt() {
		return fromString(r.Num().String())
	}
	num, _, err := apd.NewFromString(r.Num().String())
	if err != nil {
		return nil, notNumber
	}
	den, _, err := apd.NewFromString(r.Denom().String())
	if err != nil {
		return nil, notNumber
	}
	d := new(apd.Decimal)
	if _, err := ratContext.Quo(d, num, den); err != nil {
		return nil, notNumber
	}
	return d, finite
}

func fromString(s string) (*apd.Decimal, numKind) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, notNumber
	}
	return fromDecimal(d)
}

func fromDecimal(d *apd.Decimal) (*apd.Decimal, numKind) {
	switch d.Form {
	case apd.NaN, apd.NaNSignaling:
		return nil, nan
	case apd.Infinite:
		if d.Negative {
			return nil, negInf
		}
		return nil, posInf
	}
	return d, finite
}

func asString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func asBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}
	return false, false
}
