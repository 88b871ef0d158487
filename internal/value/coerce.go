// internal/value/coerce.go
package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrOutOfRange   = errors.New("value: out of range")
	ErrIncompatible = errors.New("value: incompatible kind")
)

// Rounding selects how fractional numbers become integers.
type Rounding uint8

const (
	// HalfUp rounds .5 towards positive infinity: floor(x + 0.5).
	HalfUp Rounding = iota
	HalfEven
	HalfAwayFromZero
	Truncate
)

func (r Rounding) String() string {
	switch r {
	case HalfUp:
		return "half_up"
	case HalfEven:
		return "half_even"
	case HalfAwayFromZero:
		return "half_away_from_zero"
	case Truncate:
		return "truncate"
	}
	return fmt.Sprintf("rounding(%d)", uint8(r))
}

// ParseRounding maps a configuration name to a Rounding. Empty means HalfUp.
func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(s) {
	case "", "half_up":
		return HalfUp, nil
	case "half_even":
		return HalfEven, nil
	case "half_away_from_zero":
		return HalfAwayFromZero, nil
	case "truncate":
		return Truncate, nil
	}
	return HalfUp, fmt.Errorf("value: unknown rounding %q", s)
}

// Round applies the policy to x.
func (r Rounding) Round(x float64) float64 {
	switch r {
	case HalfEven:
		return math.RoundToEven(x)
	case HalfAwayFromZero:
		return math.Round(x)
	case Truncate:
		return math.Trunc(x)
	default:
		return math.Floor(x + 0.5)
	}
}

// Coerce converts v to kind k.
//
// Narrowing that does not fit is ErrOutOfRange, never a silent wrap.
// Floats become integers through the rounding policy. An empty string
// coerces to Null. Null coerces to Null for every kind.
func Coerce(v Value, k Kind, r Rounding) (Value, error) {
	if v.kind == KindNull || v.kind == k {
		return v, nil
	}

	switch k {
	case KindBool:
		return toBool(v)
	case KindInt16, KindInt32, KindInt64:
		return toIntegral(v, k, r)
	case KindFloat32, KindFloat64:
		return toFloating(v, k)
	case KindString:
		if v.kind == KindBytes {
			return String(strings.TrimRight(string(v.b), "\x00")), nil
		}
		return String(v.String()), nil
	case KindBytes:
		if v.kind == KindString {
			return Bytes([]byte(v.s)), nil
		}
	}
	return Null(), fmt.Errorf("%w: %s to %s", ErrIncompatible, v.kind, k)
}

func toBool(v Value) (Value, error) {
	switch {
	case v.kind.Integral():
		return Bool(v.i != 0), nil
	case v.kind.Floating():
		return Bool(v.f != 0), nil
	case v.kind == KindString:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "":
			return Null(), nil
		case "true", "1", "on":
			return Bool(true), nil
		case "false", "0", "off":
			return Bool(false), nil
		}
		return Null(), fmt.Errorf("%w: string %q to bool", ErrIncompatible, v.s)
	}
	return Null(), fmt.Errorf("%w: %s to bool", ErrIncompatible, v.kind)
}

func toIntegral(v Value, k Kind, r Rounding) (Value, error) {
	var n int64

	switch {
	case v.kind == KindBool, v.kind.Integral():
		n = v.i

	case v.kind.Floating():
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return Null(), fmt.Errorf("%w: %v to %s", ErrOutOfRange, v.f, k)
		}
		x := r.Round(v.f)
		if x < math.MinInt64 || x >= math.MaxInt64 {
			return Null(), fmt.Errorf("%w: %v to %s", ErrOutOfRange, v.f, k)
		}
		n = int64(x)

	case v.kind == KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return Null(), nil
		}
		p, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Null(), fmt.Errorf("%w: string %q to %s", ErrIncompatible, v.s, k)
		}
		n = p

	default:
		return Null(), fmt.Errorf("%w: %s to %s", ErrIncompatible, v.kind, k)
	}

	if !FitsInt(n, k) {
		return Null(), fmt.Errorf("%w: %d to %s", ErrOutOfRange, n, k)
	}
	return Value{kind: k, i: n}, nil
}

func toFloating(v Value, k Kind) (Value, error) {
	var f float64

	switch {
	case v.kind == KindBool, v.kind.Integral():
		f = float64(v.i)
	case v.kind.Floating():
		f = v.f
	case v.kind == KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return Null(), nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Null(), fmt.Errorf("%w: string %q to %s", ErrIncompatible, v.s, k)
		}
		f = p
	default:
		return Null(), fmt.Errorf("%w: %s to %s", ErrIncompatible, v.kind, k)
	}

	if k == KindFloat32 {
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return Null(), fmt.Errorf("%w: %v to float32", ErrOutOfRange, f)
		}
		return Float32(float32(f)), nil
	}
	return Float64(f), nil
}

// FitsInt reports whether n is representable in integral kind k.
func FitsInt(n int64, k Kind) bool {
	switch k {
	case KindInt16:
		return n >= math.MinInt16 && n <= math.MaxInt16
	case KindInt32:
		return n >= math.MinInt32 && n <= math.MaxInt32
	case KindInt64:
		return true
	}
	return false
}

// FitsFloat reports whether the integral float x is representable in
// integral kind k.
func FitsFloat(x float64, k Kind) bool {
	switch k {
	case KindInt16:
		return x >= math.MinInt16 && x <= math.MaxInt16
	case KindInt32:
		return x >= math.MinInt32 && x <= math.MaxInt32
	case KindInt64:
		// 2^63 is exactly representable; MaxInt64 is not.
		return x >= math.MinInt64 && x < math.MaxInt64
	}
	return false
}

// OfInt builds an integral Value of kind k without range checking.
// Callers check FitsInt first.
func OfInt(n int64, k Kind) Value {
	return Value{kind: k, i: n}
}
