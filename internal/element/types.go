// internal/element/types.go
package element

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/tamzrod/regmap/internal/value"
)

// Type is the raw wire type of an element.
type Type uint8

const (
	TypeBool Type = iota + 1
	TypeInt8
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeBytes
)

var typeNames = map[Type]string{
	TypeBool:    "bool",
	TypeInt8:    "int8",
	TypeUint8:   "uint8",
	TypeInt16:   "int16",
	TypeUint16:  "uint16",
	TypeInt32:   "int32",
	TypeUint32:  "uint32",
	TypeInt64:   "int64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeBytes:   "bytes",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType maps a profile type name to a Type.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidSpec, s)
}

// Size returns the encoded byte size, 0 for variable-length types.
func (t Type) Size() int {
	switch t {
	case TypeBool, TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32, TypeFloat32:
		return 4
	case TypeInt64, TypeFloat64:
		return 8
	}
	return 0
}

// Kind returns the value kind produced by decoding t.
// Unsigned types widen so that every raw value is representable.
func (t Type) Kind() value.Kind {
	switch t {
	case TypeBool:
		return value.KindBool
	case TypeInt8, TypeUint8, TypeInt16:
		return value.KindInt16
	case TypeUint16, TypeInt32:
		return value.KindInt32
	case TypeUint32, TypeInt64:
		return value.KindInt64
	case TypeFloat32:
		return value.KindFloat32
	case TypeFloat64:
		return value.KindFloat64
	case TypeString:
		return value.KindString
	case TypeBytes:
		return value.KindBytes
	}
	return value.KindNull
}

// Integral reports whether t decodes to an integer that can act as a bitmask.
func (t Type) Integral() bool {
	return t.Kind().Integral()
}

// Bits returns the bit width of an integral type.
func (t Type) Bits() int {
	if !t.Integral() {
		return 0
	}
	return t.Size() * 8
}

// decode reads a canonical (big-endian, MSW first) buffer.
func decode(s Spec, b []byte) (value.Value, error) {
	// 8-bit types and bool on word units sit in the low byte
	low := b[len(b)-1]

	switch s.Type {
	case TypeBool:
		for _, x := range b {
			if x != 0 {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case TypeInt8:
		return value.Int16(int16(int8(low))), nil
	case TypeUint8:
		return value.Int16(int16(low)), nil
	case TypeInt16:
		return value.Int16(int16(binary.BigEndian.Uint16(b))), nil
	case TypeUint16:
		return value.Int32(int32(binary.BigEndian.Uint16(b))), nil
	case TypeInt32:
		return value.Int32(int32(binary.BigEndian.Uint32(b))), nil
	case TypeUint32:
		return value.Int64(int64(binary.BigEndian.Uint32(b))), nil
	case TypeInt64:
		return value.Int64(int64(binary.BigEndian.Uint64(b))), nil
	case TypeFloat32:
		return value.Float32(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case TypeFloat64:
		return value.Float64(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case TypeString:
		return value.String(strings.TrimRight(string(b), "\x00 ")), nil
	case TypeBytes:
		return value.Bytes(b), nil
	}
	return value.Null(), fmt.Errorf("%w: cannot decode %s", ErrInvalidSpec, s.Type)
}

// encode produces a canonical buffer of blen bytes. Null has no wire
// representation for any type.
func encode(s Spec, v value.Value, blen int) ([]byte, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("%w: null into %s", value.ErrIncompatible, s.Type)
	}
	out := make([]byte, blen)

	switch s.Type {
	case TypeString:
		c, err := value.Coerce(v, value.KindString, s.Rounding)
		if err != nil {
			return nil, err
		}
		str, _ := c.Str()
		if len(str) > blen {
			return nil, fmt.Errorf("%w: string of %d bytes into %d", ErrLengthMismatch, len(str), blen)
		}
		copy(out, str)
		return out, nil

	case TypeBytes:
		c, err := value.Coerce(v, value.KindBytes, s.Rounding)
		if err != nil {
			return nil, err
		}
		raw, _ := c.Raw()
		if len(raw) != blen {
			return nil, fmt.Errorf("%w: %d bytes into %d", ErrLengthMismatch, len(raw), blen)
		}
		copy(out, raw)
		return out, nil

	case TypeBool:
		c, err := value.Coerce(v, value.KindBool, s.Rounding)
		if err != nil {
			return nil, err
		}
		if on, _ := c.Bool(); on {
			out[blen-1] = 1
		}
		return out, nil

	case TypeFloat32, TypeFloat64:
		c, err := value.Coerce(v, s.Type.Kind(), s.Rounding)
		if err != nil {
			return nil, err
		}
		f, _ := c.Float()
		if s.Type == TypeFloat32 {
			binary.BigEndian.PutUint32(out, math.Float32bits(float32(f)))
		} else {
			binary.BigEndian.PutUint64(out, math.Float64bits(f))
		}
		return out, nil
	}

	c, err := value.Coerce(v, value.KindInt64, s.Rounding)
	if err != nil {
		return nil, err
	}
	n, _ := c.Int()

	lo, hi := rawRange(s.Type)
	if n < lo || n > hi {
		return nil, fmt.Errorf("%w: %d into %s", value.ErrOutOfRange, n, s.Type)
	}

	switch s.Type {
	case TypeInt8, TypeUint8:
		out[blen-1] = byte(n)
		if s.Type == TypeInt8 && n < 0 && blen == 2 {
			// sign-extend into the high byte of the register
			out[0] = 0xFF
		}
	case TypeInt16, TypeUint16:
		binary.BigEndian.PutUint16(out, uint16(n))
	case TypeInt32, TypeUint32:
		binary.BigEndian.PutUint32(out, uint32(n))
	case TypeInt64:
		binary.BigEndian.PutUint64(out, uint64(n))
	default:
		return nil, fmt.Errorf("%w: cannot encode %s", ErrInvalidSpec, s.Type)
	}
	return out, nil
}

func rawRange(t Type) (int64, int64) {
	switch t {
	case TypeInt8:
		return math.MinInt8, math.MaxInt8
	case TypeUint8:
		return 0, math.MaxUint8
	case TypeInt16:
		return math.MinInt16, math.MaxInt16
	case TypeUint16:
		return 0, math.MaxUint16
	case TypeInt32:
		return math.MinInt32, math.MaxInt32
	case TypeUint32:
		return 0, math.MaxUint32
	}
	return math.MinInt64, math.MaxInt64
}
