// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/regmap/internal/registry"
)

// ReadBlock describes one Modbus read geometry.
// Geometry only: no semantics.
type ReadBlock struct {
	FC       uint8
	Address  uint16
	Quantity uint16
	Priority registry.Priority
}

// BlockResult is the raw result of a single read.
type BlockResult struct {
	FC       uint8
	Address  uint16
	Quantity uint16

	// Exactly one of these is used depending on FC.
	Bits      []bool   // FC 1,2
	Registers []uint16 // FC 3,4

	Err error // this block only; other blocks of the cycle still count
}

// Area returns the registry area the block was read from.
func (b BlockResult) Area() registry.Area {
	return registry.Area(b.FC)
}

// Bytes stages the block the way elements decode it: two big-endian
// bytes per register, one 0/1 byte per bit.
func (b BlockResult) Bytes() []byte {
	if b.FC == 1 || b.FC == 2 {
		out := make([]byte, len(b.Bits))
		for i, on := range b.Bits {
			if on {
				out[i] = 1
			}
		}
		return out
	}
	out := make([]byte, 2*len(b.Registers))
	for i, r := range b.Registers {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	DeviceID string
	Cycle    uint64
	At       time.Time

	Blocks []BlockResult

	// Err is the first block error of the cycle, nil when every block
	// was read. It drives device health.
	Err error
}

// Failed returns the number of blocks that could not be read.
func (r PollResult) Failed() int {
	n := 0
	for _, b := range r.Blocks {
		if b.Err != nil {
			n++
		}
	}
	return n
}
