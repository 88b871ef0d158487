// internal/element/dummy.go
package element

import (
	"fmt"

	"github.com/tamzrod/regmap/internal/value"
)

// dummy reserves address space that is read as part of a larger block
// but carries no channel.
type dummy struct {
	addr   uint32
	length uint16
	unit   Unit
}

// Dummy reserves length units starting at addr.
func Dummy(addr uint32, length uint16, unit Unit) Element {
	if length == 0 {
		length = 1
	}
	return &dummy{addr: addr, length: length, unit: unit}
}

// DummyRange reserves the inclusive range [first, last].
func DummyRange(first, last uint32, unit Unit) (Element, error) {
	if last < first || last-first >= 1<<16 {
		return nil, fmt.Errorf("%w: dummy range %d-%d", ErrInvalidSpec, first, last)
	}
	return Dummy(first, uint16(last-first+1), unit), nil
}

// IsDummy reports whether e only reserves address space.
func IsDummy(e Element) bool {
	_, ok := e.(*dummy)
	return ok
}

func (d *dummy) Address() uint32  { return d.addr }
func (d *dummy) Length() uint16   { return d.length }
func (d *dummy) Unit() Unit       { return d.unit }
func (d *dummy) Type() Type       { return TypeBytes }
func (d *dummy) Kind() value.Kind { return value.KindNull }
func (d *dummy) ByteLen() int     { return int(d.length) * d.unit.Width() }

func (d *dummy) String() string {
	return fmt.Sprintf("dummy@%d[%d%s]", d.addr, d.length, d.unit)
}

func (d *dummy) Decode([]byte) (value.Value, error) {
	return value.Null(), nil
}

func (d *dummy) Encode(value.Value) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", ErrDummyEncode, d)
}
