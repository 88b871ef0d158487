// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"

	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/registry"
)

// Protocol limits for a single Modbus write request.
const (
	MaxWriteRegisters = 123
	MaxWriteCoils     = 1968
)

var (
	ErrReadOnlyArea = errors.New("writer: area is not writable over modbus")
	ErrBadPayload   = errors.New("writer: payload does not fit the area")
)

// Prepare validates req and picks the function code. Nothing here
// touches the bus, so a rejected request never costs the link.
func Prepare(req device.WriteRequest) (Op, error) {
	op := Op{Req: req}

	n := req.Quantity()
	if n == 0 {
		return op, fmt.Errorf("%w: empty write to %s %d", ErrBadPayload, req.Area, req.Address)
	}
	if uint64(req.Address)+uint64(n) > 1<<16 {
		return op, fmt.Errorf("%w: %s %d+%d beyond modbus address space", ErrBadPayload, req.Area, req.Address, n)
	}
	op.Addr = uint16(req.Address)

	switch req.Area {
	case registry.Coils:
		if n > MaxWriteCoils {
			return op, fmt.Errorf("%w: %d coils", ErrBadPayload, n)
		}
		op.bits = make([]bool, n)
		for i, b := range req.Data {
			op.bits[i] = b != 0
		}
		op.FC = 15
		if n == 1 {
			op.FC = 5
		}

	case registry.HoldingRegisters:
		if len(req.Data)%2 != 0 {
			return op, fmt.Errorf("%w: odd register payload (%d bytes)", ErrBadPayload, len(req.Data))
		}
		if n > MaxWriteRegisters {
			return op, fmt.Errorf("%w: %d registers", ErrBadPayload, n)
		}
		op.regs = make([]uint16, n)
		for i := range op.regs {
			op.regs[i] = uint16(req.Data[2*i])<<8 | uint16(req.Data[2*i+1])
		}
		op.FC = 16
		if n == 1 {
			op.FC = 6
		}

	default:
		return op, fmt.Errorf("%w: %s", ErrReadOnlyArea, req.Area)
	}

	return op, nil
}

// Apply issues the write.
func (op Op) Apply(c BusClient) error {
	var err error
	switch op.FC {
	case 5:
		err = c.WriteCoil(op.Addr, op.bits[0])
	case 15:
		err = c.WriteCoils(op.Addr, op.bits)
	case 6:
		err = c.WriteRegister(op.Addr, op.regs[0])
	case 16:
		err = c.WriteRegisters(op.Addr, op.regs)
	default:
		return fmt.Errorf("writer: unsupported fc %d", op.FC)
	}
	if err != nil {
		return fmt.Errorf("writer: device=%s ch=%s fc=%d addr=%d: %w",
			op.Req.Device, op.Req.Channel, op.FC, op.Addr, err)
	}
	return nil
}
