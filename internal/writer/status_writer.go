// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/tamzrod/regmap/internal/status"
)

// endpointClient is what the status writer needs from a remote memory.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// deviceStatusWriter mirrors one device's status block into holding
// registers of a remote endpoint.
type deviceStatusWriter struct {
	plan *StatusPlan
	cli  endpointClient

	needFull bool
	last     status.Snapshot
}

// NewDeviceStatusWriter builds a status writer. A nil plan disables status.
func NewDeviceStatusWriter(plan *StatusPlan, cli endpointClient) (*deviceStatusWriter, bool) {
	if plan == nil {
		return nil, false
	}
	return &deviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last:     status.Snapshot{Health: status.HealthUnknown},
	}, true
}

// WriteStatus delivers a device status snapshot into status memory.
// Only changed slots are written; on any write failure, the next call
// re-asserts the full block.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}

	base := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		regs := status.Encode(s, sw.plan.DeviceName)
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, base, regs); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = s
		return nil
	}

	// ------------------------------------------------------------
	// Per-slot delta writes
	// ------------------------------------------------------------
	prev := status.Live(sw.last)
	next := status.Live(s)

	var errs error
	for slot := range next {
		if prev[slot] == next[slot] {
			continue
		}
		err := sw.cli.WriteRegisters(sw.plan.UnitID, base+uint16(slot), next[slot:slot+1])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("slot%d write failed: %w", slot, err))
		}
	}

	if errs != nil {
		// Any partial failure introduces doubt: re-assert on next call.
		sw.needFull = true
		return fmt.Errorf("status writer: %w", errs)
	}

	sw.last = s
	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}
