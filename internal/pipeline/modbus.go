// internal/pipeline/modbus.go
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/poller"
	"github.com/tamzrod/regmap/internal/writer"
	wmodbus "github.com/tamzrod/regmap/internal/writer/modbus"
)

var errNoWriteLink = fmt.Errorf("%w: client cannot write", poller.ErrLocal)

// Link turns the poller's live client into a write client.
type Link func(c poller.Client) (writer.BusClient, error)

// ModbusLink writes through the same connection the poller reads on.
func ModbusLink(c poller.Client) (writer.BusClient, error) {
	switch t := c.(type) {
	case writer.BusClient:
		return t, nil
	case interface{ Modbus() modbus.Client }:
		return wmodbus.NewLink(t.Modbus()), nil
	}
	return nil, errNoWriteLink
}

// RunModbus drives one polled device until ctx is done: poll results,
// queued writes and the 1 Hz health tick. It returns only after the
// poller has stopped touching its client.
func (r *Runtime) RunModbus(ctx context.Context, p *poller.Poller, link Link) {
	if link == nil {
		link = ModbusLink
	}

	out := make(chan poller.PollResult)
	jobs := make(chan poller.Job)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Run(ctx, out, jobs)
	}()
	go func() {
		defer wg.Done()
		r.forwardWrites(ctx, jobs, link)
	}()
	defer wg.Wait()

	r.Start()

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-out:
			r.HandlePoll(res)
		case <-secTicker.C:
			r.Tick()
		}
	}
}

// forwardWrites turns queued write requests into poller jobs. It runs
// apart from the result loop so a pending poll result never blocks a
// write and the other way round.
func (r *Runtime) forwardWrites(ctx context.Context, jobs chan<- poller.Job, link Link) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.dev.Writes():
			job, ok := r.writeJob(req, link)
			if !ok {
				continue
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Runtime) writeJob(req device.WriteRequest, link Link) (poller.Job, bool) {
	op, err := writer.Prepare(req)
	if err != nil {
		r.log.Warn("write rejected", zap.String("channel", string(req.Channel)), zap.Error(err))
		return poller.Job{}, false
	}

	return poller.Job{
		Do: func(c poller.Client) error {
			bc, err := link(c)
			if err != nil {
				return err
			}
			return op.Apply(bc)
		},
		Done: func(err error) {
			if err != nil {
				r.log.Warn("write failed",
					zap.String("channel", string(req.Channel)),
					zap.Uint8("fc", op.FC),
					zap.Uint16("address", op.Addr),
					zap.Error(err))
				return
			}
			r.log.Debug("write applied",
				zap.String("channel", string(req.Channel)),
				zap.Uint8("fc", op.FC),
				zap.Uint16("address", op.Addr))
		},
	}, true
}
