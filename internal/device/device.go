// internal/device/device.go
package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/binding"
	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/registry"
	"github.com/tamzrod/regmap/internal/value"
)

var (
	ErrUnknownChannel = errors.New("device: channel not mapped")
	ErrQueueFull      = errors.New("device: write queue full")
	ErrBadBlock       = errors.New("device: block does not align to area unit")
)

// Capabilities is declared by the device at build time so that callers
// never have to inspect bindings to learn what a device can do.
type Capabilities uint8

const (
	Readable Capabilities = 1 << iota
	Writable
	FaultReporting
)

func (c Capabilities) Has(x Capabilities) bool { return c&x == x }

func (c Capabilities) String() string {
	var parts []string
	if c.Has(Readable) {
		parts = append(parts, "readable")
	}
	if c.Has(Writable) {
		parts = append(parts, "writable")
	}
	if c.Has(FaultReporting) {
		parts = append(parts, "fault_reporting")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// WriteRequest is one encoded write, ready for the bus owner.
// Data is staged the way Ingest expects it back: two bytes per register,
// one byte (0/1) per coil.
type WriteRequest struct {
	Device  string
	Area    registry.Area
	Address uint32
	Data    []byte
	Channel channel.ID
}

// Quantity returns the number of area units covered by Data.
func (w WriteRequest) Quantity() int {
	return len(w.Data) / w.Area.Unit().Width()
}

// Report summarises one Ingest call.
type Report struct {
	Applied int // bindings that decoded successfully
	Failed  int // bindings whose element failed to decode
	Partial int // entries only partly covered by the block
	Err     error
}

type route struct {
	h   binding.Handler
	rng registry.Range
}

// Device owns a sealed registry and the bindings hanging off it.
type Device struct {
	id       string
	instance uuid.UUID
	caps     Capabilities

	reg      *registry.Registry
	handlers map[registry.Range]binding.Handler
	routes   map[channel.ID]route

	writes chan WriteRequest
	log    *zap.Logger
}

func (d *Device) ID() string                   { return d.id }
func (d *Device) Instance() uuid.UUID          { return d.instance }
func (d *Device) Capabilities() Capabilities   { return d.caps }
func (d *Device) Registry() *registry.Registry { return d.reg }

// Writes is drained by the goroutine that owns the device's bus client.
func (d *Device) Writes() <-chan WriteRequest { return d.writes }

// Plan returns the read transactions for the device's readable entries.
func (d *Device) Plan(o registry.PlanOptions) ([]registry.Transaction, error) {
	return d.reg.PlanReadTransactions(o)
}

// Channels returns every channel the device publishes to, sorted.
func (d *Device) Channels() []channel.ID {
	out := make([]channel.ID, 0, len(d.routes))
	for id := range d.routes {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

// Ingest dispatches a block of staged bytes read from area at start.
// Only readable entries fully covered by the block are decoded. One bad
// element never stops the others.
func (d *Device) Ingest(area registry.Area, start uint32, data []byte) Report {
	var rep Report

	width := area.Unit().Width()
	if len(data)%width != 0 {
		rep.Err = fmt.Errorf("%w: %d bytes in %s", ErrBadBlock, len(data), area)
		return rep
	}

	full, partial := d.reg.ResolveRange(area, start, len(data)/width)
	rep.Partial = len(partial)

	for _, e := range full {
		if !e.Access.Readable() {
			continue
		}
		h := d.handlers[e.Range]
		if h == nil {
			continue // reserved space
		}
		off := int(e.Range.Start-start) * width
		raw := data[off : off+h.Element().ByteLen()]

		if err := h.Apply(raw); err != nil {
			rep.Failed++
			rep.Err = multierr.Append(rep.Err, err)
			d.log.Warn("decode failed",
				zap.Stringer("area", area),
				zap.Uint32("address", e.Range.Start),
				zap.Error(err))
			continue
		}
		rep.Applied++
	}

	if rep.Partial > 0 {
		d.log.Debug("block cuts through elements",
			zap.Stringer("area", area),
			zap.Uint32("start", start),
			zap.Int("partial", rep.Partial))
	}
	return rep
}

// Write encodes v for channel id and queues it for the bus owner.
// Encode errors and ErrNotWritable are returned synchronously.
func (d *Device) Write(id channel.ID, v value.Value) error {
	r, ok := d.routes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}

	data, err := r.h.Write(id, v)
	if err != nil {
		return err
	}

	req := WriteRequest{
		Device:  d.id,
		Area:    r.rng.Area,
		Address: r.rng.Start,
		Data:    data,
		Channel: id,
	}

	select {
	case d.writes <- req:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, d.id)
	}
}
