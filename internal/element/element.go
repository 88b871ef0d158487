// internal/element/element.go
package element

import (
	"errors"
	"fmt"

	"github.com/tamzrod/regmap/internal/value"
)

var (
	ErrLengthMismatch = errors.New("element: length mismatch")
	ErrDummyEncode    = errors.New("element: encode on dummy element")
	ErrInvalidSpec    = errors.New("element: invalid spec")
)

// Element is one addressable run of units on the wire.
// Decode and Encode are pure and safe for concurrent use.
type Element interface {
	Address() uint32
	Length() uint16 // in units
	Unit() Unit
	Type() Type
	Kind() value.Kind // kind produced by Decode
	ByteLen() int

	Decode(raw []byte) (value.Value, error)
	Encode(v value.Value) ([]byte, error)
}

// Unit is the addressing granularity of an element's address space.
type Unit uint8

const (
	// Word is a 16-bit Modbus register.
	Word Unit = iota
	// Byte is one byte of a CAN payload.
	Byte
	// Bit is one coil or discrete input, staged as one byte (0/1).
	Bit
)

// Width returns the number of staged bytes per unit.
func (u Unit) Width() int {
	if u == Word {
		return 2
	}
	return 1
}

func (u Unit) String() string {
	switch u {
	case Word:
		return "word"
	case Byte:
		return "byte"
	case Bit:
		return "bit"
	}
	return fmt.Sprintf("unit(%d)", uint8(u))
}

// ByteOrder is the byte order inside a word, or of the whole value on
// byte-addressed elements.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// WordOrder is applied to multi-word values on top of ByteOrder.
type WordOrder uint8

const (
	// MSWFirst puts the most significant word at the lowest address.
	MSWFirst WordOrder = iota
	// LSWFirst puts the least significant word at the lowest address.
	LSWFirst
)

// ParseByteOrder maps a profile name to a ByteOrder. Empty means BigEndian.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "", "big_endian", "be":
		return BigEndian, nil
	case "little_endian", "le":
		return LittleEndian, nil
	}
	return BigEndian, fmt.Errorf("%w: unknown byte order %q", ErrInvalidSpec, s)
}

// ParseWordOrder maps a profile name to a WordOrder. Empty means MSWFirst.
func ParseWordOrder(s string) (WordOrder, error) {
	switch s {
	case "", "msw_first":
		return MSWFirst, nil
	case "lsw_first":
		return LSWFirst, nil
	}
	return MSWFirst, fmt.Errorf("%w: unknown word order %q", ErrInvalidSpec, s)
}

// Spec declares one element. It is consumed by New.
type Spec struct {
	Address   uint32
	Length    uint16 // units; 0 means natural length of Type
	Unit      Unit
	Type      Type
	ByteOrder ByteOrder
	WordOrder WordOrder
	Rounding  value.Rounding
}

type numeric struct {
	spec Spec
	blen int
}

// New validates s and returns an immutable Element.
func New(s Spec) (Element, error) {
	width := s.Unit.Width()

	if s.Type == TypeString || s.Type == TypeBytes {
		if s.Length == 0 {
			return nil, fmt.Errorf("%w: %s at %d needs a length", ErrInvalidSpec, s.Type, s.Address)
		}
		return &numeric{spec: s, blen: int(s.Length) * width}, nil
	}

	size := s.Type.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: unknown type at %d", ErrInvalidSpec, s.Address)
	}

	if s.Unit == Bit {
		if s.Type != TypeBool {
			return nil, fmt.Errorf("%w: bit unit only holds bool, got %s at %d", ErrInvalidSpec, s.Type, s.Address)
		}
		if s.Length == 0 {
			s.Length = 1
		}
		if s.Length != 1 {
			return nil, fmt.Errorf("%w: bool on bit unit has length 1, got %d at %d", ErrInvalidSpec, s.Length, s.Address)
		}
		return &numeric{spec: s, blen: 1}, nil
	}

	// bool and 8-bit types occupy a whole word on register areas
	if size < width {
		size = width
	}
	if size%width != 0 {
		return nil, fmt.Errorf("%w: %s does not align to %s at %d", ErrInvalidSpec, s.Type, s.Unit, s.Address)
	}

	natural := uint16(size / width)
	if s.Length == 0 {
		s.Length = natural
	}
	if s.Length != natural {
		return nil, fmt.Errorf("%w: %s needs %d %ss, got %d at %d", ErrInvalidSpec, s.Type, natural, s.Unit, s.Length, s.Address)
	}

	return &numeric{spec: s, blen: size}, nil
}

// MustNew is New for static tables known to be valid.
func MustNew(s Spec) Element {
	e, err := New(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *numeric) Address() uint32  { return e.spec.Address }
func (e *numeric) Length() uint16   { return e.spec.Length }
func (e *numeric) Unit() Unit       { return e.spec.Unit }
func (e *numeric) Type() Type       { return e.spec.Type }
func (e *numeric) Kind() value.Kind { return e.spec.Type.Kind() }
func (e *numeric) ByteLen() int     { return e.blen }

func (e *numeric) String() string {
	return fmt.Sprintf("%s@%d[%d%s]", e.spec.Type, e.spec.Address, e.spec.Length, e.spec.Unit)
}

func (e *numeric) Decode(raw []byte) (value.Value, error) {
	if len(raw) != e.blen {
		return value.Null(), fmt.Errorf("%w: %s got %d bytes, want %d", ErrLengthMismatch, e, len(raw), e.blen)
	}
	return decode(e.spec, e.canonical(raw))
}

func (e *numeric) Encode(v value.Value) ([]byte, error) {
	b, err := encode(e.spec, v, e.blen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e, err)
	}
	return e.canonical(b), nil
}

// canonical converts between wire layout and big-endian MSW-first layout.
// On word units ByteOrder applies inside each word and WordOrder across
// words; on byte units ByteOrder applies to the whole value.
// The transform is its own inverse.
func (e *numeric) canonical(raw []byte) []byte {
	out := append([]byte(nil), raw...)
	t := e.spec.Type
	if t == TypeString || t == TypeBytes || len(out) < 2 {
		return out
	}

	if e.spec.Unit != Word {
		if e.spec.ByteOrder == LittleEndian {
			reverse(out)
		}
		return out
	}

	if e.spec.ByteOrder == LittleEndian {
		for i := 0; i+1 < len(out); i += 2 {
			out[i], out[i+1] = out[i+1], out[i]
		}
	}
	if e.spec.WordOrder == LSWFirst {
		swapWords(out)
	}
	return out
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// swapWords reverses the order of 16-bit words, keeping bytes within a word.
func swapWords(b []byte) {
	n := len(b) / 2
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		b[2*i], b[2*j] = b[2*j], b[2*i]
		b[2*i+1], b[2*j+1] = b[2*j+1], b[2*i+1]
	}
}
