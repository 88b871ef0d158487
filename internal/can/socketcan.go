package can

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	ecan "go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

const receiveWindow = 250 * time.Millisecond

// SocketBus is a raw SocketCAN connection bound to one interface.
type SocketBus struct {
	conn   net.Conn
	rx     *socketcan.Receiver
	iface  string
	closed atomic.Bool
}

// Dial opens a raw CAN socket on iface (e.g. "can0"). SocketCAN is
// linux only; elsewhere Dial fails.
func Dial(ctx context.Context, iface string) (*SocketBus, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("can: dial %s: %w", iface, err)
	}
	return newSocketBus(conn, iface), nil
}

func newSocketBus(conn net.Conn, iface string) *SocketBus {
	return &SocketBus{conn: conn, rx: socketcan.NewReceiver(conn), iface: iface}
}

func (b *SocketBus) Receive() (Frame, error) {
	if b.closed.Load() {
		return Frame{}, ErrClosed
	}

	if err := b.conn.SetReadDeadline(time.Now().Add(receiveWindow)); err != nil {
		if b.closed.Load() {
			return Frame{}, ErrClosed
		}
		return Frame{}, fmt.Errorf("can: deadline %s: %w", b.iface, err)
	}

	if b.rx.Receive() {
		if b.rx.HasErrorFrame() {
			return Frame{Err: true}, nil
		}
		return fromWire(b.rx.Frame()), nil
	}

	err := b.rx.Err()
	switch {
	case b.closed.Load(), err == nil:
		// nil means EOF
		return Frame{}, ErrClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		// the scanner is spent after any error; a raw socket yields
		// whole frames, so nothing is lost by starting a new one
		b.rx = socketcan.NewReceiver(b.conn)
		return Frame{}, errTimeout
	default:
		return Frame{}, fmt.Errorf("can: read %s: %w", b.iface, err)
	}
}

func (b *SocketBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.conn.Close()
}

func fromWire(f ecan.Frame) Frame {
	return Frame{
		ID:       f.ID,
		Extended: f.IsExtended,
		RTR:      f.IsRemote,
		Len:      f.Length,
		Data:     f.Data,
	}
}
