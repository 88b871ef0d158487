// internal/writer/types.go
package writer

import (
	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/status"
)

// BusClient is the exact contract device writes use. The unit id is
// fixed by the link the client was dialled on.
type BusClient interface {
	WriteCoil(addr uint16, on bool) error            // FC 5
	WriteCoils(addr uint16, bits []bool) error       // FC 15
	WriteRegister(addr uint16, v uint16) error       // FC 6
	WriteRegisters(addr uint16, regs []uint16) error // FC 16
}

// Op is one validated write, ready to run on the bus owner's goroutine.
type Op struct {
	Req  device.WriteRequest
	FC   uint8
	Addr uint16

	bits []bool
	regs []uint16
}

// StatusPlan places one device's status block on a Modbus endpoint.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}
