// internal/poller/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Client implements poller.Client over Modbus TCP or RTU.
// This adapter is geometry-only: it issues requests and unpacks raw responses.
type Client struct {
	handler handler
	client  modbus.Client
}

type handler interface {
	Connect() error
	Close() error
}

// Config is minimal transport config.
type Config struct {
	Protocol string // "modbus-tcp" | "modbus-rtu"
	Endpoint string // host:port or serial device
	UnitID   uint8
	Timeout  time.Duration

	BaudRate int
	DataBits int
	Parity   string
	StopBits int
}

// Exception is a Modbus exception response. Transport failures are
// never wrapped in it, so callers can tell a live device from a dead link.
type Exception struct {
	Function      byte
	ExceptionCode byte
}

func (e *Exception) Error() string {
	return fmt.Sprintf("modbus exception: fc=%d code=%d", e.Function, e.ExceptionCode)
}

// Code returns the raw exception code.
func (e *Exception) Code() uint16 { return uint16(e.ExceptionCode) }

// New creates a connected client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus client: endpoint required")
	}

	var h interface {
		handler
		modbus.ClientHandler
	}

	switch cfg.Protocol {
	case "", "modbus-tcp":
		th := modbus.NewTCPClientHandler(cfg.Endpoint)
		th.Timeout = cfg.Timeout
		th.SlaveId = cfg.UnitID
		h = th
	case "modbus-rtu":
		rh := modbus.NewRTUClientHandler(cfg.Endpoint)
		rh.Timeout = cfg.Timeout
		rh.SlaveId = cfg.UnitID
		rh.BaudRate = cfg.BaudRate
		rh.DataBits = cfg.DataBits
		rh.Parity = cfg.Parity
		rh.StopBits = cfg.StopBits
		h = rh
	default:
		return nil, fmt.Errorf("modbus client: unknown protocol %q", cfg.Protocol)
	}

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Client{handler: h, client: modbus.NewClient(h)}, nil
}

// Modbus exposes the underlying client so writes can share the link.
func (c *Client) Modbus() modbus.Client {
	return c.client
}

// Close closes the connection.
func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ---- poller.Client interface ----

func (c *Client) ReadCoils(addr, qty uint16) ([]bool, error) {
	b, err := c.client.ReadCoils(addr, qty)
	if err != nil {
		return nil, wrap(err)
	}
	return unpackBits(b, int(qty)), nil
}

func (c *Client) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	b, err := c.client.ReadDiscreteInputs(addr, qty)
	if err != nil {
		return nil, wrap(err)
	}
	return unpackBits(b, int(qty)), nil
}

func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	b, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, wrap(err)
	}
	return unpackRegisters(b, int(qty))
}

func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	b, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, wrap(err)
	}
	return unpackRegisters(b, int(qty))
}

// ---- helpers (pure geometry) ----

func wrap(err error) error {
	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return &Exception{Function: me.FunctionCode, ExceptionCode: me.ExceptionCode}
	}
	return err
}

func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		if byteIdx >= len(data) {
			break
		}
		out[i] = data[byteIdx]&(1<<(i%8)) != 0
	}
	return out
}

func unpackRegisters(data []byte, count int) ([]uint16, error) {
	if len(data) != 2*count {
		return nil, fmt.Errorf("modbus: got %d register bytes, want %d", len(data), 2*count)
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out, nil
}
