// internal/converter/converter.go
package converter

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tamzrod/regmap/internal/value"
)

var (
	// ErrNotConvertible means the converter has no channel value for the input.
	// It is not a failure: the channel becomes undefined.
	ErrNotConvertible = errors.New("converter: not convertible")

	// ErrUnsupportedType is a configuration error: the converter cannot act
	// on the element's value kind.
	ErrUnsupportedType = errors.New("converter: unsupported type")

	ErrInvalid = errors.New("converter: invalid definition")
)

// Converter maps element values to channel values (Forward) and back.
// Implementations are pure and safe for concurrent use.
type Converter interface {
	Forward(v value.Value) (value.Value, error)
	Backward(v value.Value) (value.Value, error)

	// Supports reports whether the converter accepts values of kind k.
	// Bindings check it once at setup.
	Supports(k value.Kind) bool

	String() string
}

// Option configures arithmetic converters.
type Option func(*options)

type options struct {
	rounding value.Rounding
}

// WithRounding sets the policy used when a widened result falls back to
// a rounded float64.
func WithRounding(r value.Rounding) Option {
	return func(o *options) { o.rounding = r }
}

func buildOptions(opts []Option) options {
	o := options{rounding: value.HalfUp}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// ---- Direct ----

type direct struct{}

// Direct passes every value through unchanged.
func Direct() Converter { return direct{} }

func (direct) Forward(v value.Value) (value.Value, error)  { return v, nil }
func (direct) Backward(v value.Value) (value.Value, error) { return v, nil }
func (direct) Supports(value.Kind) bool                    { return true }
func (direct) String() string                              { return "direct" }

// ---- arithmetic converters ----

type arith struct {
	name     string
	fwd, bwd op
	rounding value.Rounding
}

func (a *arith) Forward(v value.Value) (value.Value, error) {
	return a.fwd.apply(v, a.rounding)
}

func (a *arith) Backward(v value.Value) (value.Value, error) {
	return a.bwd.apply(v, a.rounding)
}

func (a *arith) Supports(k value.Kind) bool { return k != value.KindBytes }
func (a *arith) String() string             { return a.name }

// ScaleFactor multiplies by 10^(-n) forward and 10^(n) backward.
// ScaleFactor(2) turns a raw 150 into 1.5.
func ScaleFactor(n int, opts ...Option) (Converter, error) {
	if n < -18 || n > 18 {
		return nil, fmt.Errorf("%w: scale factor %d outside [-18, 18]", ErrInvalid, n)
	}
	o := buildOptions(opts)
	p := pow10(abs(n))

	a := &arith{name: fmt.Sprintf("scale_factor:%d", n), rounding: o.rounding}
	switch {
	case n > 0:
		a.fwd, a.bwd = divBy(p), mulBy(p)
	case n < 0:
		a.fwd, a.bwd = mulBy(p), divBy(p)
	default:
		a.fwd, a.bwd = identity(), identity()
	}
	return a, nil
}

// Factor multiplies by f forward and by 1/f backward.
func Factor(f float64, opts ...Option) (Converter, error) {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: factor %v", ErrInvalid, f)
	}
	o := buildOptions(opts)
	return &arith{
		name:     fmt.Sprintf("factor:%v", f),
		fwd:      mulBy(f),
		bwd:      divBy(f),
		rounding: o.rounding,
	}, nil
}

// Offset adds k forward and subtracts it backward.
func Offset(k float64, opts ...Option) (Converter, error) {
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("%w: offset %v", ErrInvalid, k)
	}
	o := buildOptions(opts)
	return &arith{
		name:     fmt.Sprintf("offset:%v", k),
		fwd:      add(k),
		bwd:      add(-k),
		rounding: o.rounding,
	}, nil
}

// Invert negates in both directions.
func Invert(opts ...Option) Converter {
	o := buildOptions(opts)
	return &arith{name: "invert", fwd: negate(), bwd: negate(), rounding: o.rounding}
}

// ---- KeepPositive ----

type keepPositive struct{}

// KeepPositive keeps values greater than zero; everything else is not
// convertible. Backward is the identity.
func KeepPositive() Converter { return keepPositive{} }

func (keepPositive) Forward(v value.Value) (value.Value, error) {
	k := v.Kind()
	if k == value.KindBytes {
		return value.Null(), fmt.Errorf("%w: keep_positive on %s", ErrUnsupportedType, k)
	}
	if !k.Numeric() {
		return v, nil
	}
	f, _ := v.AsFloat64()
	if f > 0 {
		return v, nil
	}
	return value.Null(), ErrNotConvertible
}

func (keepPositive) Backward(v value.Value) (value.Value, error) {
	if v.Kind() == value.KindBytes {
		return value.Null(), fmt.Errorf("%w: keep_positive on %s", ErrUnsupportedType, v.Kind())
	}
	return v, nil
}

func (keepPositive) Supports(k value.Kind) bool { return k != value.KindBytes }
func (keepPositive) String() string             { return "keep_positive" }

// ---- Chain ----

type chain []Converter

// Chain applies cs in order forward and in reverse order backward.
func Chain(cs ...Converter) Converter {
	flat := make(chain, 0, len(cs))
	for _, c := range cs {
		if c == nil {
			continue
		}
		if inner, ok := c.(chain); ok {
			flat = append(flat, inner...)
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 0 {
		return Direct()
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return flat
}

func (c chain) Forward(v value.Value) (value.Value, error) {
	var err error
	for _, step := range c {
		if v, err = step.Forward(v); err != nil {
			return value.Null(), err
		}
	}
	return v, nil
}

func (c chain) Backward(v value.Value) (value.Value, error) {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		if v, err = c[i].Backward(v); err != nil {
			return value.Null(), err
		}
	}
	return v, nil
}

func (c chain) Supports(k value.Kind) bool {
	for _, step := range c {
		if !step.Supports(k) {
			return false
		}
	}
	return true
}

func (c chain) String() string {
	names := make([]string, len(c))
	for i, step := range c {
		names[i] = step.String()
	}
	return strings.Join(names, " > ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func pow10(n int) float64 {
	p := 1.0
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
