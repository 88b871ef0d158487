// internal/can/router.go
package can

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/registry"
)

// Sink receives the ingest report of every frame that touched a device.
type Sink func(f Frame, rep device.Report)

type route struct {
	dev  *device.Device
	sink Sink
}

// Router fans frames from one bus out to the devices attached to it.
// Several devices may share an interface.
type Router struct {
	bus Bus
	log *zap.Logger

	mu     sync.RWMutex
	routes []route
}

func NewRouter(bus Bus, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{bus: bus, log: log}
}

// Attach adds a device. sink may be nil.
func (r *Router) Attach(dev *device.Device, sink Sink) {
	r.mu.Lock()
	r.routes = append(r.routes, route{dev: dev, sink: sink})
	r.mu.Unlock()
}

// Dispatch ingests one frame into every attached device.
// Remote and error frames carry no payload and are ignored.
func (r *Router) Dispatch(f Frame) {
	if f.RTR || f.Err || f.Len == 0 {
		return
	}

	r.mu.RLock()
	routes := r.routes
	r.mu.RUnlock()

	for _, rt := range routes {
		rep := rt.dev.Ingest(registry.Frames, f.Address(), f.Payload())
		if rep.Applied == 0 && rep.Failed == 0 {
			continue
		}
		if rt.sink != nil {
			rt.sink(f, rep)
		}
	}
}

// Run receives frames until ctx is done or the bus fails.
// The bus is closed on return.
func (r *Router) Run(ctx context.Context) error {
	defer r.bus.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		f, err := r.bus.Receive()
		switch {
		case err == nil:
		case errors.Is(err, errTimeout):
			continue
		case errors.Is(err, ErrClosed):
			return nil
		case errors.Is(err, ErrShortFrame), errors.Is(err, ErrInvalidLen):
			r.log.Debug("dropped malformed frame", zap.Error(err))
			continue
		default:
			return err
		}

		r.Dispatch(f)
	}
}
