// internal/converter/converter_test.go
package converter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/regmap/internal/value"
)

func mustScale(t *testing.T, n int) Converter {
	t.Helper()
	c, err := ScaleFactor(n)
	require.NoError(t, err)
	return c
}

func TestChain_ScaleThenInvert(t *testing.T) {
	c := Chain(mustScale(t, 2), Invert())

	fwd, err := c.Forward(value.Int16(150))
	require.NoError(t, err)
	assert.True(t, value.Float64(-1.5).Equal(fwd), "got %v", fwd)

	bwd, err := c.Backward(value.Float64(-1.5))
	require.NoError(t, err)
	f, ok := bwd.AsFloat64()
	require.True(t, ok)
	assert.Equal(t, 150.0, f)
}

func TestScaleFactor_Widening(t *testing.T) {
	up := mustScale(t, -1) // x10

	cases := []struct {
		in   value.Value
		want value.Value
	}{
		{value.Int16(3000), value.Int16(30000)},
		{value.Int16(math.MaxInt16), value.Int32(327670)},
		{value.Int16(math.MinInt16), value.Int32(-327680)},
		{value.Int32(math.MaxInt32), value.Int64(int64(math.MaxInt32) * 10)},
	}
	for _, tc := range cases {
		got, err := up.Forward(tc.in)
		require.NoError(t, err)
		assert.True(t, tc.want.Equal(got), "%v: got %v (%s)", tc.in, got, got.Kind())
	}

	got, err := up.Forward(value.Int64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, value.KindFloat64, got.Kind(), "int64 overflow falls back to float64")
}

func TestScaleFactor_ExactDivisionKeepsKind(t *testing.T) {
	got, err := mustScale(t, 1).Forward(value.Int16(250))
	require.NoError(t, err)
	assert.True(t, value.Int16(25).Equal(got))

	got, err = mustScale(t, 1).Forward(value.Int16(255))
	require.NoError(t, err)
	assert.True(t, value.Float64(25.5).Equal(got))
}

func TestOffset_Boundary(t *testing.T) {
	c, err := Offset(1)
	require.NoError(t, err)

	got, err := c.Forward(value.Int16(math.MaxInt16))
	require.NoError(t, err)
	assert.True(t, value.Int32(32768).Equal(got))

	back, err := c.Backward(got)
	require.NoError(t, err)
	assert.True(t, value.Int32(32767).Equal(back))
}

func TestFactor_RoundTrip(t *testing.T) {
	c, err := Factor(0.5)
	require.NoError(t, err)

	got, err := c.Forward(value.Int16(5))
	require.NoError(t, err)
	assert.True(t, value.Float64(2.5).Equal(got))

	back, err := c.Backward(got)
	require.NoError(t, err)
	f, _ := back.AsFloat64()
	assert.Equal(t, 5.0, f)
}

func TestKeepPositive(t *testing.T) {
	c := KeepPositive()

	got, err := c.Forward(value.Int32(7))
	require.NoError(t, err)
	assert.True(t, value.Int32(7).Equal(got))

	for _, v := range []value.Value{value.Int16(0), value.Float64(-0.1)} {
		_, err := c.Forward(v)
		assert.ErrorIs(t, err, ErrNotConvertible, v.String())
	}

	got, err = c.Forward(value.String("n/a"))
	require.NoError(t, err)
	assert.Equal(t, value.KindString, got.Kind())

	back, err := c.Backward(value.Int16(-3))
	require.NoError(t, err)
	assert.True(t, value.Int16(-3).Equal(back), "backward is the identity")
}

func TestArithmetic_RejectsBytes(t *testing.T) {
	c := mustScale(t, 1)
	assert.False(t, c.Supports(value.KindBytes))
	_, err := c.Forward(value.Bytes([]byte{1}))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.True(t, Direct().Supports(value.KindBytes))
}

func TestInvalidDefinitions(t *testing.T) {
	_, err := ScaleFactor(19)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Factor(0)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Offset(math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseChain(t *testing.T) {
	c, err := ParseChain([]string{"scale_factor:2", " invert "})
	require.NoError(t, err)

	got, err := c.Forward(value.Int16(150))
	require.NoError(t, err)
	assert.True(t, value.Float64(-1.5).Equal(got))

	for _, bad := range []string{"factor", "scale_factor:x", "bogus:1"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}

	c, err = ParseChain(nil)
	require.NoError(t, err)
	got, _ = c.Forward(value.Bytes([]byte{9}))
	assert.Equal(t, value.KindBytes, got.Kind(), "empty chain is direct")
}

// near reports whether got is within a relative 1e-9 of want, absolute
// below magnitude 1.
func near(want, got float64) bool {
	return math.Abs(want-got) <= 1e-9*math.Max(1, math.Abs(want))
}

func TestRoundTrip_AllConvertersAllKinds(t *testing.T) {
	mustFactor := func(f float64) Converter {
		c, err := Factor(f)
		require.NoError(t, err)
		return c
	}
	mustOffset := func(k float64) Converter {
		c, err := Offset(k)
		require.NoError(t, err)
		return c
	}

	converters := []Converter{
		Direct(),
		Invert(),
		mustScale(t, 2),
		mustScale(t, -3),
		mustFactor(0.5),
		mustFactor(4),
		mustOffset(100),
		mustOffset(-2.5),
		KeepPositive(),
	}

	inputs := []value.Value{
		value.Int16(0), value.Int16(1), value.Int16(-1),
		value.Int16(math.MaxInt16), value.Int16(math.MinInt16),
		value.Int32(123456), value.Int32(math.MaxInt32), value.Int32(math.MinInt32),
		value.Int64(-987654321012), value.Int64(math.MaxInt64), value.Int64(math.MinInt64),
		value.Float32(1.25), value.Float32(-3.5), value.Float32(math.MaxFloat32), value.Float32(math.SmallestNonzeroFloat32),
		value.Float64(0.1), value.Float64(-1e300), value.Float64(1e300), value.Float64(math.SmallestNonzeroFloat64),
	}

	for _, c := range converters {
		for _, in := range inputs {
			name := c.String() + " " + in.String() + " " + in.Kind().String()
			want, _ := in.AsFloat64()

			fwd, err := c.Forward(in)
			if _, keep := c.(keepPositive); keep && want <= 0 {
				assert.ErrorIs(t, err, ErrNotConvertible, name)
				continue
			}
			require.NoError(t, err, name)

			back, err := c.Backward(fwd)
			require.NoError(t, err, name)

			got, ok := back.AsFloat64()
			require.True(t, ok, name)
			assert.True(t, near(want, got), "%s: got %v", name, back)

			// integral round trips with an integral step are exact
			if in.Kind().Integral() && back.Kind().Integral() {
				a, _ := in.Int()
				b, _ := back.Int()
				assert.Equal(t, a, b, name)
			}
		}
	}
}
