// internal/device/builder.go
package device

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/binding"
	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/element"
	"github.com/tamzrod/regmap/internal/registry"
	"github.com/tamzrod/regmap/internal/value"
)

var ErrAreaReadOnly = errors.New("device: area is read-only")

// DefaultQueue is the write queue depth when none is configured.
const DefaultQueue = 16

// Builder assembles a device. It is single-owner: nothing it builds is
// visible to other goroutines until Build returns.
type Builder struct {
	id       string
	store    *channel.Store
	log      *zap.Logger
	queue    int
	rounding value.Rounding

	reg      *registry.Registry
	handlers map[registry.Range]binding.Handler
	routes   map[channel.ID]route
	decls    map[channel.ID]channel.Decl
	order    []channel.ID
	caps     Capabilities
	built    bool
}

func NewBuilder(id string, store *channel.Store, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		id:       id,
		store:    store,
		log:      log.With(zap.String("device", id)),
		queue:    DefaultQueue,
		reg:      registry.New(),
		handlers: make(map[registry.Range]binding.Handler),
		routes:   make(map[channel.ID]route),
		decls:    make(map[channel.ID]channel.Decl),
	}
}

// Queue sets the write queue depth.
func (b *Builder) Queue(n int) *Builder {
	if n > 0 {
		b.queue = n
	}
	return b
}

// Rounding sets the policy used when a value published to one of the
// device's channels has to be coerced into the channel's kind.
func (b *Builder) Rounding(r value.Rounding) *Builder {
	b.rounding = r
	return b
}

// Channel declares a channel with an explicit kind and unit. Channels that
// are mapped without being declared accept any kind.
func (b *Builder) Channel(d channel.Decl) error {
	if _, dup := b.decls[d.ID]; dup {
		return fmt.Errorf("%w: %s", channel.ErrDuplicate, d.ID)
	}
	b.decls[d.ID] = d
	b.order = append(b.order, d.ID)
	return nil
}

// Map registers el in area and binds it to targets.
func (b *Builder) Map(area registry.Area, el element.Element, access registry.Access, prio registry.Priority, targets ...binding.Target) error {
	if err := b.checkAccess(area, access); err != nil {
		return err
	}
	h, err := binding.New(el, access, b.store, b.log, targets...)
	if err != nil {
		return err
	}
	if err := b.attach(area, el, access, prio, h, value.KindNull); err != nil {
		return err
	}

	if access.Readable() {
		b.caps |= Readable
	}
	if access.Writable() {
		b.caps |= Writable
	}
	return nil
}

// Faults registers el in area as a fault bitfield, read-only.
func (b *Builder) Faults(area registry.Area, el element.Element, prio registry.Priority, bits ...binding.Bit) error {
	h, err := binding.NewFault(el, b.store, b.log, bits...)
	if err != nil {
		return err
	}
	if err := b.attach(area, el, registry.ReadOnly, prio, h, value.KindBool); err != nil {
		return err
	}
	b.caps |= Readable | FaultReporting
	return nil
}

// Dummy reserves [first, last] in area. Reserved space is never decoded
// but may be read through to join neighbouring entries.
func (b *Builder) Dummy(area registry.Area, first, last uint32) error {
	el, err := element.DummyRange(first, last, area.Unit())
	if err != nil {
		return err
	}
	return b.reg.Register(registry.RangeOf(area, el), el, registry.ReadOnly, registry.Low)
}

func (b *Builder) checkAccess(area registry.Area, access registry.Access) error {
	if !access.Writable() {
		return nil
	}
	switch area {
	case registry.Coils, registry.HoldingRegisters:
		return nil
	}
	return fmt.Errorf("%w: %s cannot be %s", ErrAreaReadOnly, area, access)
}

// attach registers the entry and only then declares the handler's
// channels that were not declared up front, with kind k.
func (b *Builder) attach(area registry.Area, el element.Element, access registry.Access, prio registry.Priority, h binding.Handler, k value.Kind) error {
	for _, id := range h.Channels() {
		if r, dup := b.routes[id]; dup {
			return fmt.Errorf("%w: %s already bound at %s %d", binding.ErrDuplicateChannel, id, r.rng.Area, r.rng.Start)
		}
	}

	rng := registry.RangeOf(area, el)
	if err := b.reg.Register(rng, el, access, prio); err != nil {
		return err
	}

	b.handlers[rng] = h
	for _, id := range h.Channels() {
		b.routes[id] = route{h: h, rng: rng}
		if _, ok := b.decls[id]; !ok {
			b.declare(channel.Decl{ID: id, Kind: k, Writable: access.Writable()})
		}
	}
	return nil
}

func (b *Builder) declare(d channel.Decl) {
	b.decls[d.ID] = d
	b.order = append(b.order, d.ID)
}

// Build seals the registry, declares the device's channels on the store
// and routes writes for its writable channels back to the device.
func (b *Builder) Build() (*Device, error) {
	if b.built {
		return nil, errors.New("device: builder already used")
	}
	b.built = true
	b.reg.Seal()

	d := &Device{
		id:       b.id,
		instance: uuid.New(),
		caps:     b.caps,
		reg:      b.reg,
		handlers: b.handlers,
		routes:   b.routes,
		writes:   make(chan WriteRequest, b.queue),
		log:      b.log,
	}

	if b.store == nil {
		return d, nil
	}

	for _, id := range b.order {
		decl := b.decls[id]
		decl.Rounding = b.rounding
		r, bound := b.routes[id]
		if bound {
			if e, ok := b.reg.Resolve(r.rng.Area, r.rng.Start); ok && e.Access.Writable() {
				decl.Writable = true
			}
		}
		if err := b.store.Declare(decl); err != nil {
			return nil, err
		}
		if !bound || !decl.Writable {
			continue
		}
		id := id
		if err := b.store.SetWriteHandler(id, func(v value.Value) error {
			return d.Write(id, v)
		}); err != nil {
			return nil, err
		}
	}

	for _, e := range b.reg.Entries() {
		b.log.Debug("register mapped",
			zap.Stringer("area", e.Range.Area),
			zap.Uint32("address", e.Range.Start),
			zap.Uint16("length", e.Range.Length),
			zap.Stringer("type", e.Element.Type()),
			zap.Stringer("access", e.Access),
			zap.Stringer("priority", e.Priority))
	}

	b.log.Info("device built",
		zap.String("instance", d.instance.String()),
		zap.Stringer("capabilities", d.caps),
		zap.Int("entries", b.reg.Len()),
		zap.Int("channels", len(b.order)))
	return d, nil
}

func sortIDs(ids []channel.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
