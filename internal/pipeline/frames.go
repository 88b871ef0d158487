// internal/pipeline/frames.go
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/can"
	"github.com/tamzrod/regmap/internal/device"
)

// ErrNoFrames is reported when a CAN device went quiet for longer than
// its stale window.
var ErrNoFrames = errors.New("pipeline: no frames received")

// frameStats is filled by the router goroutine and drained by the
// runtime once per second.
type frameStats struct {
	mu           sync.Mutex
	frames       int
	decodeErrors int
	last         time.Time
}

func (s *frameStats) add(rep device.Report, at time.Time) {
	s.mu.Lock()
	s.frames++
	s.decodeErrors += rep.Failed
	s.last = at
	s.mu.Unlock()
}

func (s *frameStats) drain() (frames, decodeErrors int, last time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames, decodeErrors, last = s.frames, s.decodeErrors, s.last
	s.frames, s.decodeErrors = 0, 0
	return
}

// FrameRunner folds pushed CAN frames into device health.
type FrameRunner struct {
	rt         *Runtime
	staleAfter time.Duration
	stats      frameStats
	started    time.Time
	now        func() time.Time
}

// NewFrameRunner watches rt's device. A device that sent nothing for
// staleAfter is in error.
func NewFrameRunner(rt *Runtime, staleAfter time.Duration) *FrameRunner {
	return &FrameRunner{rt: rt, staleAfter: staleAfter, now: time.Now}
}

// Sink is attached to the CAN router for this device.
func (f *FrameRunner) Sink() can.Sink {
	return func(_ can.Frame, rep device.Report) {
		f.stats.add(rep, f.now())
	}
}

// Evaluate folds the frames seen since the previous call into health.
func (f *FrameRunner) Evaluate() {
	frames, decodeErrors, last := f.stats.drain()

	if frames > 0 {
		f.rt.observe(frames, 0, decodeErrors, nil)
		return
	}

	since := last
	if since.IsZero() {
		since = f.started
	}
	if f.now().Sub(since) > f.staleAfter {
		f.rt.observe(1, 1, 0, ErrNoFrames)
	}
}

// Run evaluates health and ticks once per second until ctx is done.
// CAN devices accept no writes; queued requests are drained and logged.
func (f *FrameRunner) Run(ctx context.Context) {
	f.started = f.now()
	f.rt.Start()

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-f.rt.dev.Writes():
			f.rt.log.Warn("write dropped: CAN source is receive-only", zap.String("channel", string(req.Channel)))
		case <-secTicker.C:
			f.Evaluate()
			f.rt.Tick()
		}
	}
}
