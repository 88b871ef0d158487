// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// EndpointClient is a single TCP connection to one status endpoint.
// It serializes requests because it mutates SlaveId per write.
type EndpointClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &EndpointClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID
	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

// Link issues device writes over an already connected client. The unit
// id is the one the client was dialled with. Not safe for concurrent
// use: it belongs to the goroutine that owns the bus.
type Link struct {
	client modbus.Client
}

func NewLink(c modbus.Client) *Link {
	return &Link{client: c}
}

func (l *Link) WriteCoil(addr uint16, on bool) error {
	var v uint16
	if on {
		v = 0xFF00
	}
	_, err := l.client.WriteSingleCoil(addr, v)
	return err
}

func (l *Link) WriteCoils(addr uint16, bits []bool) error {
	_, err := l.client.WriteMultipleCoils(addr, uint16(len(bits)), packBits(bits))
	return err
}

func (l *Link) WriteRegister(addr uint16, v uint16) error {
	_, err := l.client.WriteSingleRegister(addr, v)
	return err
}

func (l *Link) WriteRegisters(addr uint16, regs []uint16) error {
	_, err := l.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

func packBits(bits []bool) []byte {
	n := (len(bits) + 7) / 8
	out := make([]byte, n)
	for i, v := range bits {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
