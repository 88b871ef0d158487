// internal/can/bus.go
package can

import "errors"

var (
	ErrClosed = errors.New("can: bus closed")

	// errTimeout is returned by Receive when no frame arrived within the
	// poll window. Callers loop on it.
	errTimeout = errors.New("can: receive timeout")
)

// Bus is a source of CAN frames.
type Bus interface {
	// Receive blocks until a frame arrives, the receive window expires
	// or the bus is closed.
	Receive() (Frame, error)
	Close() error
}
