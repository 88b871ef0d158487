// internal/can/frame.go
package can

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF

	// wire size of a Linux struct can_frame
	frameSize = 16

	flagEFF = 0x80000000
	flagRTR = 0x40000000
	flagERR = 0x20000000
)

var (
	ErrInvalidID  = errors.New("can: invalid identifier")
	ErrInvalidLen = errors.New("can: invalid data length")
	ErrShortFrame = errors.New("can: short frame")
)

// Frame is a classical CAN 2.0A/B data or remote frame.
type Frame struct {
	ID       uint32
	Extended bool
	RTR      bool
	Err      bool // error frame reported by the controller
	Len      uint8
	Data     [8]byte
}

func (f Frame) Validate() error {
	if f.Len > 8 {
		return ErrInvalidLen
	}
	max := uint32(maxStdID)
	if f.Extended {
		max = maxExtID
	}
	if f.ID > max {
		return fmt.Errorf("%w: 0x%X", ErrInvalidID, f.ID)
	}
	return nil
}

// Payload returns the used data bytes.
func (f Frame) Payload() []byte {
	return f.Data[:f.Len]
}

// Address is the first byte address of the frame in the Frames area.
func (f Frame) Address() uint32 {
	return f.ID << 3
}

func (f Frame) String() string {
	if f.Extended {
		return fmt.Sprintf("%08X#% X", f.ID, f.Payload())
	}
	return fmt.Sprintf("%03X#% X", f.ID, f.Payload())
}

// MarshalBinary encodes the frame as a Linux struct can_frame.
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, frameSize)
	id := f.ID
	if f.Extended {
		id |= flagEFF
	}
	if f.RTR {
		id |= flagRTR
	}
	binary.LittleEndian.PutUint32(out[0:4], id)
	out[4] = f.Len
	copy(out[8:], f.Data[:])
	return out, nil
}

// UnmarshalBinary decodes a Linux struct can_frame.
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) < frameSize {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	raw := binary.LittleEndian.Uint32(b[0:4])

	var nf Frame
	nf.Extended = raw&flagEFF != 0
	nf.RTR = raw&flagRTR != 0
	nf.Err = raw&flagERR != 0
	if nf.Extended {
		nf.ID = raw & maxExtID
	} else {
		nf.ID = raw & maxStdID
	}
	nf.Len = b[4]
	if nf.Len > 8 {
		return ErrInvalidLen
	}
	copy(nf.Data[:], b[8:16])

	*f = nf
	return nil
}
