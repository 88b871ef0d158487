// internal/element/element_test.go
package element

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/regmap/internal/value"
)

func TestRoundTrip_WordTypes(t *testing.T) {
	cases := []struct {
		typ Type
		in  value.Value
		raw []byte
	}{
		{TypeInt16, value.Int16(-2), []byte{0xFF, 0xFE}},
		{TypeUint16, value.Int32(65535), []byte{0xFF, 0xFF}},
		{TypeInt32, value.Int32(0x01020304), []byte{1, 2, 3, 4}},
		{TypeUint32, value.Int64(math.MaxUint32), []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{TypeFloat32, value.Float32(1.5), []byte{0x3F, 0xC0, 0, 0}},
		{TypeInt8, value.Int16(-1), []byte{0xFF, 0xFF}},
		{TypeUint8, value.Int16(200), []byte{0x00, 0xC8}},
		{TypeBool, value.Bool(true), []byte{0, 1}},
	}

	for _, tc := range cases {
		el, err := New(Spec{Address: 100, Unit: Word, Type: tc.typ})
		require.NoError(t, err, tc.typ.String())

		raw, err := el.Encode(tc.in)
		require.NoError(t, err, tc.typ.String())
		assert.Equal(t, tc.raw, raw, tc.typ.String())

		got, err := el.Decode(raw)
		require.NoError(t, err, tc.typ.String())
		assert.True(t, tc.in.Equal(got), "%s: got %v", tc.typ, got)
	}
}

func TestWordAndByteOrder(t *testing.T) {
	// 0x11223344 as int32 in every layout
	cases := []struct {
		bo  ByteOrder
		wo  WordOrder
		raw []byte
	}{
		{BigEndian, MSWFirst, []byte{0x11, 0x22, 0x33, 0x44}},
		{BigEndian, LSWFirst, []byte{0x33, 0x44, 0x11, 0x22}},
		{LittleEndian, MSWFirst, []byte{0x22, 0x11, 0x44, 0x33}},
		{LittleEndian, LSWFirst, []byte{0x44, 0x33, 0x22, 0x11}},
	}
	for _, tc := range cases {
		el := MustNew(Spec{Unit: Word, Type: TypeInt32, ByteOrder: tc.bo, WordOrder: tc.wo})

		got, err := el.Decode(tc.raw)
		require.NoError(t, err)
		assert.True(t, value.Int32(0x11223344).Equal(got), "%v/%v: got %v", tc.bo, tc.wo, got)

		raw, err := el.Encode(value.Int32(0x11223344))
		require.NoError(t, err)
		assert.Equal(t, tc.raw, raw)
	}
}

func TestByteUnitLittleEndian(t *testing.T) {
	el := MustNew(Spec{Unit: Byte, Type: TypeUint32, ByteOrder: LittleEndian})
	assert.Equal(t, uint16(4), el.Length())

	got, err := el.Decode([]byte{0x78, 0x56, 0x34, 0x12})
	require.NoError(t, err)
	assert.True(t, value.Int64(0x12345678).Equal(got))
}

func TestString(t *testing.T) {
	el := MustNew(Spec{Unit: Word, Type: TypeString, Length: 3})
	assert.Equal(t, 6, el.ByteLen())

	raw, err := el.Encode(value.String("SN42"))
	require.NoError(t, err)
	assert.Equal(t, []byte("SN42\x00\x00"), raw)

	got, err := el.Decode(raw)
	require.NoError(t, err)
	s, _ := got.Str()
	assert.Equal(t, "SN42", s)

	_, err = el.Encode(value.String("TOO-LONG"))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestEncode_Range(t *testing.T) {
	el := MustNew(Spec{Unit: Word, Type: TypeUint16})

	_, err := el.Encode(value.Int32(-1))
	assert.ErrorIs(t, err, value.ErrOutOfRange)
	_, err = el.Encode(value.Int32(65536))
	assert.ErrorIs(t, err, value.ErrOutOfRange)
	_, err = el.Encode(value.Null())
	assert.ErrorIs(t, err, value.ErrIncompatible)

	raw, err := el.Encode(value.Float64(99.5))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 100}, raw, "floats round half up")
}

func TestDecode_LengthMismatch(t *testing.T) {
	el := MustNew(Spec{Unit: Word, Type: TypeInt32})
	_, err := el.Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestNew_InvalidSpecs(t *testing.T) {
	bad := []Spec{
		{Unit: Word, Type: TypeString},
		{Unit: Bit, Type: TypeInt16},
		{Unit: Bit, Type: TypeBool, Length: 2},
		{Unit: Word, Type: TypeInt32, Length: 3},
		{Unit: Word, Type: Type(99)},
	}
	for _, s := range bad {
		_, err := New(s)
		assert.ErrorIs(t, err, ErrInvalidSpec, "%+v", s)
	}
}

func TestBitUnit(t *testing.T) {
	el := MustNew(Spec{Address: 7, Unit: Bit, Type: TypeBool})
	assert.Equal(t, 1, el.ByteLen())

	raw, err := el.Encode(value.Int16(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, raw)
}

func TestDummy(t *testing.T) {
	d, err := DummyRange(10, 14, Word)
	require.NoError(t, err)
	assert.True(t, IsDummy(d))
	assert.Equal(t, uint16(5), d.Length())
	assert.Equal(t, 10, d.ByteLen())

	_, err = d.Encode(value.Int16(1))
	assert.ErrorIs(t, err, ErrDummyEncode)

	_, err = DummyRange(5, 4, Word)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestParse(t *testing.T) {
	typ, err := ParseType(" Float32 ")
	require.NoError(t, err)
	assert.Equal(t, TypeFloat32, typ)

	_, err = ParseByteOrder("middle")
	assert.ErrorIs(t, err, ErrInvalidSpec)

	wo, err := ParseWordOrder("lsw_first")
	require.NoError(t, err)
	assert.Equal(t, LSWFirst, wo)
}

func TestEncode_NullRejectedForEveryType(t *testing.T) {
	specs := []Spec{
		{Unit: Word, Type: TypeInt16},
		{Unit: Word, Type: TypeUint32},
		{Unit: Word, Type: TypeFloat32},
		{Unit: Word, Type: TypeFloat64},
		{Unit: Word, Type: TypeBool},
		{Unit: Word, Type: TypeString, Length: 2},
		{Unit: Word, Type: TypeBytes, Length: 2},
		{Unit: Bit, Type: TypeBool},
	}
	for _, s := range specs {
		el, err := New(s)
		require.NoError(t, err, "%+v", s)

		raw, err := el.Encode(value.Null())
		assert.ErrorIs(t, err, value.ErrIncompatible, s.Type.String())
		assert.Nil(t, raw, s.Type.String())
	}
}
