// internal/binding/fault.go
package binding

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/element"
	"github.com/tamzrod/regmap/internal/value"
)

var (
	ErrDuplicateBit  = errors.New("binding: bit declared twice")
	ErrBitOutOfRange = errors.New("binding: bit outside element")
	ErrNotBitfield   = errors.New("binding: element is not an integer bitfield")
)

// Bit maps one bit position to a boolean channel.
type Bit struct {
	Index   uint8
	Channel channel.ID
}

// FaultBinding decodes an integer element into independent boolean
// channels, one per declared bit. Undeclared bits are ignored.
type FaultBinding struct {
	el   element.Element
	bits []Bit
	pub  Publisher
	log  *zap.Logger

	mu sync.Mutex
}

// NewFault declares bits on el. Declaring a bit twice is a configuration
// error, as is a bit beyond the element's width.
func NewFault(el element.Element, pub Publisher, log *zap.Logger, bits ...Bit) (*FaultBinding, error) {
	if el == nil {
		return nil, errors.New("binding: nil element")
	}
	width := el.Type().Bits()
	if width == 0 {
		return nil, fmt.Errorf("%w: %s at %d", ErrNotBitfield, el.Type(), el.Address())
	}
	if len(bits) == 0 {
		return nil, fmt.Errorf("%w: element %d", ErrNoTargets, el.Address())
	}
	if log == nil {
		log = zap.NewNop()
	}

	seenBit := make(map[uint8]channel.ID, len(bits))
	seenCh := make(map[channel.ID]struct{}, len(bits))
	for _, b := range bits {
		if int(b.Index) >= width {
			return nil, fmt.Errorf("%w: bit %d of %d-bit element %d", ErrBitOutOfRange, b.Index, width, el.Address())
		}
		if prev, dup := seenBit[b.Index]; dup {
			return nil, fmt.Errorf("%w: bit %d (%s, %s)", ErrDuplicateBit, b.Index, prev, b.Channel)
		}
		if _, dup := seenCh[b.Channel]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, b.Channel)
		}
		seenBit[b.Index] = b.Channel
		seenCh[b.Channel] = struct{}{}
	}

	sorted := append([]Bit(nil), bits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	return &FaultBinding{el: el, bits: sorted, pub: pub, log: log}, nil
}

func (f *FaultBinding) Element() element.Element { return f.el }

func (f *FaultBinding) Channels() []channel.ID {
	out := make([]channel.ID, len(f.bits))
	for i, b := range f.bits {
		out[i] = b.Channel
	}
	return out
}

// Apply publishes (raw >> bit) & 1 to every declared channel.
func (f *FaultBinding) Apply(raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.el.Decode(raw)
	if err != nil {
		return err
	}
	n, ok := v.Int()
	if !ok {
		return fmt.Errorf("%w: decoded %s", ErrNotBitfield, v.Kind())
	}

	mask := uint64(n)
	for _, b := range f.bits {
		on := (mask>>b.Index)&1 == 1
		if err := f.pub.Publish(b.Channel, value.Bool(on)); err != nil {
			f.log.Warn("publish failed",
				zap.String("channel", string(b.Channel)),
				zap.Uint8("bit", b.Index),
				zap.Error(err))
		}
	}
	return nil
}

// Write is always rejected: fault bits are read-only.
func (f *FaultBinding) Write(id channel.ID, _ value.Value) ([]byte, error) {
	return nil, fmt.Errorf("%w: fault bit %s", ErrNotWritable, id)
}
