// internal/profile/build.go
package profile

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/binding"
	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/converter"
	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/element"
	"github.com/tamzrod/regmap/internal/registry"
	"github.com/tamzrod/regmap/internal/value"
)

// BuildOptions carries the per-instance settings that are not part of
// the device model.
type BuildOptions struct {
	// Rounding overrides the profile's rounding when set.
	Rounding string
	Queue    int
}

// Build turns a profile into a sealed device whose channels are declared
// on store as "<deviceID>/<channel>". Every element error is reported,
// not just the first.
func Build(p *Profile, deviceID string, store *channel.Store, log *zap.Logger, o BuildOptions) (*device.Device, error) {
	roundingName := p.Rounding
	if o.Rounding != "" {
		roundingName = o.Rounding
	}
	rounding, err := value.ParseRounding(roundingName)
	if err != nil {
		return nil, err
	}
	bo, err := element.ParseByteOrder(p.ByteOrder)
	if err != nil {
		return nil, err
	}
	wo, err := element.ParseWordOrder(p.WordOrder)
	if err != nil {
		return nil, err
	}

	b := device.NewBuilder(deviceID, store, log).Queue(o.Queue).Rounding(rounding)
	qualify := func(name string) channel.ID { return channel.Qualify(deviceID, name) }

	var errs error
	for _, c := range p.Channels {
		d := channel.Decl{ID: qualify(c.ID), Unit: c.Unit}
		if c.Type != "" {
			k, err := value.ParseKind(c.Type)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("channel %s: %w", c.ID, err))
				continue
			}
			d.Kind = k
		}
		errs = multierr.Append(errs, b.Channel(d))
	}

	for i, e := range p.Elements {
		if err := addElement(b, e, bo, wo, rounding, qualify); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("element %d (%s %d): %w", i, e.Area, e.Address, err))
		}
	}
	if errs != nil {
		return nil, errs
	}

	return b.Build()
}

func addElement(
	b *device.Builder,
	e Element,
	bo element.ByteOrder,
	wo element.WordOrder,
	rounding value.Rounding,
	qualify func(string) channel.ID,
) error {
	area, err := registry.ParseArea(e.Area)
	if err != nil {
		return err
	}

	if e.Dummy > 0 {
		return b.Dummy(area, e.Address, e.Address+uint32(e.Dummy)-1)
	}

	access, err := registry.ParseAccess(e.Access)
	if err != nil {
		return err
	}
	prio, err := registry.ParsePriority(e.Priority)
	if err != nil {
		return err
	}
	typ, err := element.ParseType(e.Type)
	if err != nil {
		return err
	}

	if e.ByteOrder != "" {
		if bo, err = element.ParseByteOrder(e.ByteOrder); err != nil {
			return err
		}
	}
	if e.WordOrder != "" {
		if wo, err = element.ParseWordOrder(e.WordOrder); err != nil {
			return err
		}
	}

	el, err := element.New(element.Spec{
		Address:   e.Address,
		Length:    e.Length,
		Unit:      area.Unit(),
		Type:      typ,
		ByteOrder: bo,
		WordOrder: wo,
		Rounding:  rounding,
	})
	if err != nil {
		return err
	}

	if len(e.Bits) > 0 {
		bits := make([]binding.Bit, 0, len(e.Bits))
		for _, bit := range e.Bits {
			bits = append(bits, binding.Bit{Index: bit.Bit, Channel: qualify(bit.Channel)})
		}
		return b.Faults(area, el, prio, bits...)
	}

	targets := make([]binding.Target, 0, len(e.Channels))
	for _, t := range e.Channels {
		c, err := converter.ParseChain(t.Converter, converter.WithRounding(rounding))
		if err != nil {
			return fmt.Errorf("channel %s: %w", t.ID, err)
		}
		targets = append(targets, binding.To(qualify(t.ID), c))
	}
	return b.Map(area, el, access, prio, targets...)
}
