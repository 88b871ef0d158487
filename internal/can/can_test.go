// internal/can/can_test.go
package can

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/regmap/internal/binding"
	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/element"
	"github.com/tamzrod/regmap/internal/registry"
)

// ---- fake bus ----

type fakeBus struct {
	frames []Frame
	errs   []error
	closed bool
}

func (b *fakeBus) Receive() (Frame, error) {
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		return Frame{}, err
	}
	if len(b.frames) == 0 {
		return Frame{}, ErrClosed
	}
	f := b.frames[0]
	b.frames = b.frames[1:]
	return f, nil
}

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

func frameDevice(t *testing.T, store *channel.Store) *device.Device {
	t.Helper()

	b := device.NewBuilder("bms", store, nil)
	// id 0x120, payload bytes 2..3: little-endian uint16 pack voltage
	el := element.MustNew(element.Spec{
		Address:   0x120<<3 | 2,
		Unit:      element.Byte,
		Type:      element.TypeUint16,
		ByteOrder: element.LittleEndian,
	})
	require.NoError(t, b.Map(registry.Frames, el, registry.ReadOnly, registry.High,
		binding.To(channel.Qualify("bms", "Voltage"), nil)))

	dev, err := b.Build()
	require.NoError(t, err)
	return dev
}

// ---- tests ----

func TestFrame_BinaryRoundTrip(t *testing.T) {
	f := Frame{ID: 0x18FF50E5, Extended: true, Len: 3, Data: [8]byte{1, 2, 3}}

	raw, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, frameSize)
	assert.Equal(t, byte(0x98), raw[3], "EFF flag must be set")

	var got Frame
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, f, got)
}

func TestFrame_Validate(t *testing.T) {
	assert.ErrorIs(t, Frame{ID: 0x800}.Validate(), ErrInvalidID)
	assert.NoError(t, Frame{ID: 0x800, Extended: true}.Validate())
	assert.ErrorIs(t, Frame{Len: 9}.Validate(), ErrInvalidLen)

	var f Frame
	assert.ErrorIs(t, f.UnmarshalBinary(make([]byte, 4)), ErrShortFrame)
}

func TestRouter_DispatchIngestsPayload(t *testing.T) {
	store := channel.NewStore()
	dev := frameDevice(t, store)

	r := NewRouter(&fakeBus{}, nil)
	var reports []device.Report
	r.Attach(dev, func(_ Frame, rep device.Report) { reports = append(reports, rep) })

	r.Dispatch(Frame{ID: 0x120, Len: 4, Data: [8]byte{0xFF, 0xFF, 0x34, 0x12}})
	r.Dispatch(Frame{ID: 0x121, Len: 8})    // not mapped
	r.Dispatch(Frame{ID: 0x120, RTR: true}) // remote
	r.Dispatch(Frame{ID: 0x120, Len: 2})    // too short for the element

	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Applied)

	snap, ok := store.Get(channel.Qualify("bms", "Voltage"))
	require.True(t, ok)
	n, ok := snap.Value.Int()
	require.True(t, ok)
	assert.EqualValues(t, 0x1234, n)
}

func TestRouter_RunSkipsTimeoutsAndStopsOnClose(t *testing.T) {
	store := channel.NewStore()
	dev := frameDevice(t, store)

	bus := &fakeBus{
		errs:   []error{errTimeout, ErrShortFrame},
		frames: []Frame{{ID: 0x120, Len: 4, Data: [8]byte{0, 0, 1, 0}}},
	}
	r := NewRouter(bus, nil)
	r.Attach(dev, nil)

	require.NoError(t, r.Run(context.Background()))
	assert.True(t, bus.closed)

	snap, _ := store.Get(channel.Qualify("bms", "Voltage"))
	n, _ := snap.Value.Int()
	assert.EqualValues(t, 1, n)
}

func TestRouter_RunReturnsBusError(t *testing.T) {
	boom := errors.New("link down")
	r := NewRouter(&fakeBus{errs: []error{boom}}, nil)
	assert.ErrorIs(t, r.Run(context.Background()), boom)
}
