// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/regmap/internal/registry"
)

// Client abstracts Modbus operations needed by the poller.
// The poller depends on geometry only.
type Client interface {
	ReadCoils(addr, qty uint16) ([]bool, error)              // FC 1
	ReadDiscreteInputs(addr, qty uint16) ([]bool, error)     // FC 2
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
}

var errUnsupportedFC = errors.New("poller: unsupported function code")

// ErrLocal marks job failures that never reached the bus. They leave
// the client in place.
var ErrLocal = errors.New("poller: local failure")

// Factory dials a fresh client. One attempt per call.
type Factory func() (Client, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	DeviceID string
	Interval time.Duration
	// LowEvery reads Low priority blocks on every n-th cycle; <= 1 reads
	// them every cycle.
	LowEvery int
	Reads    []ReadBlock
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg     Config
	client  Client
	factory Factory
	cycle   uint64
}

// New creates a poller with immutable config. factory may be nil, in
// which case a broken client is never replaced.
func New(cfg Config, client Client, factory Factory) (*Poller, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("poller: device id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Reads) == 0 {
		return nil, errors.New("poller: at least one read block required")
	}
	if client == nil && factory == nil {
		return nil, errors.New("poller: client or factory required")
	}
	return &Poller{cfg: cfg, client: client, factory: factory}, nil
}

// BlocksFromPlan turns planned transactions into read blocks.
// Frames are never polled; addresses beyond 16 bits are a plan error.
func BlocksFromPlan(txs []registry.Transaction) ([]ReadBlock, error) {
	out := make([]ReadBlock, 0, len(txs))
	for _, tx := range txs {
		if !tx.Area.Pollable() {
			continue
		}
		if uint64(tx.Start)+uint64(tx.Quantity) > 1<<16 {
			return nil, fmt.Errorf("poller: %s %d+%d beyond modbus address space", tx.Area, tx.Start, tx.Quantity)
		}
		out = append(out, ReadBlock{
			FC:       uint8(tx.Area),
			Address:  uint16(tx.Start),
			Quantity: tx.Quantity,
			Priority: tx.Priority,
		})
	}
	return out, nil
}

// Client returns the current client, nil after transport death.
func (p *Poller) Client() Client {
	return p.client
}

// Close releases the current client. Call it only after Run has
// returned; the poller goroutine owns the client until then.
func (p *Poller) Close() error {
	c, ok := p.client.(interface{ Close() error })
	p.client = nil
	if !ok {
		return nil
	}
	return c.Close()
}

// PollOnce performs exactly one poll cycle.
// A failing block does not abort the cycle. A transport failure drops the
// client; the factory is tried again on the next cycle.
func (p *Poller) PollOnce() PollResult {
	p.cycle++
	res := PollResult{
		DeviceID: p.cfg.DeviceID,
		Cycle:    p.cycle,
		At:       time.Now(),
	}

	if err := p.connect(); err != nil {
		res.Err = err
		return res
	}

	low := p.cfg.LowEvery <= 1 || (p.cycle-1)%uint64(p.cfg.LowEvery) == 0

	for _, rb := range p.cfg.Reads {
		if rb.Priority == registry.Low && !low {
			continue
		}

		b := p.read(rb)
		res.Blocks = append(res.Blocks, b)
		if b.Err == nil {
			continue
		}
		if res.Err == nil {
			res.Err = b.Err
		}
		if p.drop(b.Err) {
			return res
		}
	}

	return res
}

// Exec runs do with the live client on the caller's goroutine.
// Writes go through here so the client keeps a single owner.
func (p *Poller) Exec(do func(Client) error) error {
	if err := p.connect(); err != nil {
		return err
	}
	err := do(p.client)
	if err != nil {
		p.drop(err)
	}
	return err
}

func (p *Poller) connect() error {
	if p.client != nil {
		return nil
	}
	if p.factory == nil {
		return errors.New("poller: no client")
	}
	c, err := p.factory()
	if err != nil {
		return fmt.Errorf("poller: connect: %w", err)
	}
	p.client = c
	return nil
}

// drop discards the client after a transport failure.
func (p *Poller) drop(err error) bool {
	if !isTransport(err) || p.factory == nil {
		return false
	}
	if c, ok := p.client.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	p.client = nil
	return true
}

func (p *Poller) read(rb ReadBlock) BlockResult {
	b := BlockResult{FC: rb.FC, Address: rb.Address, Quantity: rb.Quantity}

	switch rb.FC {
	case 1:
		b.Bits, b.Err = p.client.ReadCoils(rb.Address, rb.Quantity)
	case 2:
		b.Bits, b.Err = p.client.ReadDiscreteInputs(rb.Address, rb.Quantity)
	case 3:
		b.Registers, b.Err = p.client.ReadHoldingRegisters(rb.Address, rb.Quantity)
	case 4:
		b.Registers, b.Err = p.client.ReadInputRegisters(rb.Address, rb.Quantity)
	default:
		b.Err = fmt.Errorf("%w %d", errUnsupportedFC, rb.FC)
	}
	return b
}

// isTransport reports whether err came from the link rather than from
// a device that answered with a protocol exception.
func isTransport(err error) bool {
	if errors.Is(err, errUnsupportedFC) || errors.Is(err, ErrLocal) {
		return false
	}
	var coded interface{ Code() uint16 }
	return !errors.As(err, &coded)
}
