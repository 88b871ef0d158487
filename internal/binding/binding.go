// internal/binding/binding.go
package binding

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/converter"
	"github.com/tamzrod/regmap/internal/element"
	"github.com/tamzrod/regmap/internal/registry"
	"github.com/tamzrod/regmap/internal/value"
)

var (
	ErrNotWritable      = errors.New("binding: not writable")
	ErrUnknownChannel   = errors.New("binding: channel not bound")
	ErrDuplicateChannel = errors.New("binding: channel bound twice")
	ErrNoTargets        = errors.New("binding: no channels")
)

// Publisher receives channel values. channel.Store implements it.
type Publisher interface {
	Publish(id channel.ID, v value.Value) error
}

// Handler is what a device dispatches decoded blocks to.
type Handler interface {
	Element() element.Element
	Channels() []channel.ID
	Apply(raw []byte) error
	Write(id channel.ID, v value.Value) ([]byte, error)
}

// Target pairs a channel with the converter feeding it.
type Target struct {
	Channel   channel.ID
	Converter converter.Converter
}

// To is shorthand for a Target.
func To(id channel.ID, c converter.Converter) Target {
	if c == nil {
		c = converter.Direct()
	}
	return Target{Channel: id, Converter: c}
}

// Binding maps one element to one or more channels.
type Binding struct {
	el      element.Element
	access  registry.Access
	targets []Target
	byID    map[channel.ID]int
	pub     Publisher
	log     *zap.Logger

	// mu keeps decode-convert-publish of this element from overlapping.
	mu sync.Mutex
}

// New validates the targets against the element's kind.
// Unsupported converter/kind combinations are configuration errors.
func New(el element.Element, access registry.Access, pub Publisher, log *zap.Logger, targets ...Target) (*Binding, error) {
	if el == nil {
		return nil, errors.New("binding: nil element")
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: element %d", ErrNoTargets, el.Address())
	}
	if log == nil {
		log = zap.NewNop()
	}

	b := &Binding{
		el:     el,
		access: access,
		byID:   make(map[channel.ID]int, len(targets)),
		pub:    pub,
		log:    log,
	}

	for _, t := range targets {
		if t.Converter == nil {
			t.Converter = converter.Direct()
		}
		if !t.Converter.Supports(el.Kind()) {
			return nil, fmt.Errorf("%w: %s on %s element %d (channel %s)",
				converter.ErrUnsupportedType, t.Converter, el.Kind(), el.Address(), t.Channel)
		}
		if _, dup := b.byID[t.Channel]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, t.Channel)
		}
		b.byID[t.Channel] = len(b.targets)
		b.targets = append(b.targets, t)
	}
	return b, nil
}

func (b *Binding) Element() element.Element { return b.el }
func (b *Binding) Access() registry.Access  { return b.access }

func (b *Binding) Channels() []channel.ID {
	out := make([]channel.ID, len(b.targets))
	for i, t := range b.targets {
		out[i] = t.Channel
	}
	return out
}

// Apply decodes raw and publishes to every bound channel.
//
// A decode error is returned and no channel changes. A failing converter
// or publish only skips its own channel; a value that is not convertible
// leaves its channel at the last published value.
func (b *Binding) Apply(raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, err := b.el.Decode(raw)
	if err != nil {
		return err
	}

	for _, t := range b.targets {
		out, err := t.Converter.Forward(v)
		switch {
		case errors.Is(err, converter.ErrNotConvertible):
			b.log.Debug("not convertible",
				zap.String("channel", string(t.Channel)),
				zap.String("converter", t.Converter.String()),
				zap.Stringer("raw", v))
			continue
		case err != nil:
			b.log.Warn("conversion failed",
				zap.String("channel", string(t.Channel)),
				zap.String("converter", t.Converter.String()),
				zap.Stringer("raw", v),
				zap.Error(err))
			continue
		}

		if err := b.pub.Publish(t.Channel, out); err != nil {
			b.log.Warn("publish failed",
				zap.String("channel", string(t.Channel)),
				zap.Stringer("value", out),
				zap.Error(err))
		}
	}
	return nil
}

// Write converts a channel value back to the element's wire bytes.
// The element is never touched for a read-only binding.
func (b *Binding) Write(id channel.ID, v value.Value) ([]byte, error) {
	if !b.access.Writable() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotWritable, id, b.access)
	}
	i, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}

	t := b.targets[i]
	raw, err := t.Converter.Backward(v)
	if err != nil {
		return nil, fmt.Errorf("binding: %s backward %s: %w", id, t.Converter, err)
	}
	return b.el.Encode(raw)
}
