// internal/converter/arith.go
package converter

import (
	"fmt"
	"math"

	"github.com/tamzrod/regmap/internal/value"
)

type opKind uint8

const (
	opIdentity opKind = iota
	opMul
	opDiv
	opAdd
	opNeg
)

// op is one arithmetic step. When the operand is integral the step runs in
// exact int64 arithmetic for integral inputs.
type op struct {
	kind  opKind
	x     float64
	xi    int64
	exact bool
}

func identity() op       { return op{kind: opIdentity} }
func mulBy(x float64) op { return newOp(opMul, x) }
func divBy(x float64) op { return newOp(opDiv, x) }
func add(x float64) op   { return newOp(opAdd, x) }
func negate() op         { return op{kind: opNeg, exact: true} }

func newOp(k opKind, x float64) op {
	o := op{kind: k, x: x}
	if x == math.Trunc(x) && x > math.MinInt64 && x < math.MaxInt64 {
		o.xi = int64(x)
		o.exact = true
	}
	return o
}

func (o op) apply(v value.Value, r value.Rounding) (value.Value, error) {
	k := v.Kind()

	switch {
	case k == value.KindBytes:
		return value.Null(), fmt.Errorf("%w: arithmetic on %s", ErrUnsupportedType, k)
	case !k.Numeric():
		// null, bool and string pass through
		return v, nil
	case o.kind == opIdentity:
		return v, nil
	case k.Floating():
		f, _ := v.Float()
		return value.Float64(o.float(f)), nil
	}

	n, _ := v.Int()
	if o.exact {
		if res, ok := o.int(n); ok {
			return widen(k, res, r), nil
		}
	}

	f := o.float(float64(n))
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return value.Float64(f), nil
	}
	return widenFloat(k, f, r), nil
}

func (o op) float(f float64) float64 {
	switch o.kind {
	case opMul:
		return f * o.x
	case opDiv:
		return f / o.x
	case opAdd:
		return f + o.x
	case opNeg:
		return -f
	}
	return f
}

// int reports false when the exact result is not an int64.
func (o op) int(n int64) (int64, bool) {
	switch o.kind {
	case opMul:
		if n == 0 || o.xi == 0 {
			return 0, true
		}
		res := n * o.xi
		if res/o.xi != n || (n == -1 && o.xi == math.MinInt64) || (o.xi == -1 && n == math.MinInt64) {
			return 0, false
		}
		return res, true
	case opDiv:
		if o.xi == 0 || n%o.xi != 0 || (n == math.MinInt64 && o.xi == -1) {
			return 0, false
		}
		return n / o.xi, true
	case opAdd:
		res := n + o.xi
		if (o.xi > 0 && res < n) || (o.xi < 0 && res > n) {
			return 0, false
		}
		return res, true
	case opNeg:
		if n == math.MinInt64 {
			return 0, false
		}
		return -n, true
	}
	return n, true
}

// wider returns the next integral kind, KindNull when there is none.
func wider(k value.Kind) value.Kind {
	switch k {
	case value.KindInt16:
		return value.KindInt32
	case value.KindInt32:
		return value.KindInt64
	}
	return value.KindNull
}

// widen keeps the input kind when the result fits, promotes one step when
// it fits there, and otherwise falls back to a rounded float64.
func widen(k value.Kind, n int64, r value.Rounding) value.Value {
	if value.FitsInt(n, k) {
		return value.OfInt(n, k)
	}
	if w := wider(k); w != value.KindNull && value.FitsInt(n, w) {
		return value.OfInt(n, w)
	}
	return value.Float64(r.Round(float64(n)))
}

func widenFloat(k value.Kind, f float64, r value.Rounding) value.Value {
	if value.FitsFloat(f, k) {
		return value.OfInt(int64(f), k)
	}
	if w := wider(k); w != value.KindNull && value.FitsFloat(f, w) {
		return value.OfInt(int64(f), w)
	}
	return value.Float64(r.Round(f))
}
