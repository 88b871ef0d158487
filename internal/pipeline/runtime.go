// internal/pipeline/runtime.go
package pipeline

import (
	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/poller"
	"github.com/tamzrod/regmap/internal/status"
	"github.com/tamzrod/regmap/internal/writer"
)

// Runtime is the per-device orchestrator. It owns the device's health
// state and is driven from a single goroutine.
type Runtime struct {
	dev     *device.Device
	store   *channel.Store
	tracker *status.Tracker
	sw      writer.StatusWriter // nil when the device has no status block
	log     *zap.Logger
}

// New creates a runtime. sw may be nil.
func New(dev *device.Device, store *channel.Store, sw writer.StatusWriter, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		dev:     dev,
		store:   store,
		tracker: status.NewTracker(),
		sw:      sw,
		log:     log.With(zap.String("device", dev.ID())),
	}
}

func (r *Runtime) Device() *device.Device { return r.dev }

func (r *Runtime) Snapshot() status.Snapshot { return r.tracker.Snapshot() }

// Start publishes the boot snapshot. The status block gets its full
// identity write here.
func (r *Runtime) Start() {
	r.report()
}

// HandlePoll ingests every block that was read and folds the cycle into
// device health.
func (r *Runtime) HandlePoll(res poller.PollResult) {
	decodeErrors := 0
	for _, b := range res.Blocks {
		if b.Err != nil {
			r.log.Debug("block failed",
				zap.Uint8("fc", b.FC),
				zap.Uint16("address", b.Address),
				zap.Uint16("quantity", b.Quantity),
				zap.Error(b.Err))
			continue
		}
		rep := r.dev.Ingest(b.Area(), uint32(b.Address), b.Bytes())
		decodeErrors += rep.Failed
	}

	total := len(res.Blocks)
	failed := res.Failed()
	if total == 0 && res.Err != nil {
		// connect failure: nothing was attempted
		total, failed = 1, 1
	}

	r.observe(total, failed, decodeErrors, res.Err)
}

func (r *Runtime) observe(total, failed, decodeErrors int, err error) {
	if !r.tracker.Observe(total, failed, decodeErrors, err) {
		return
	}
	r.log.Info("health changed",
		zap.String("health", status.HealthName(r.tracker.Snapshot().Health)),
		zap.Int("failed", failed),
		zap.Int("decode_errors", decodeErrors),
		zap.Error(err))
	r.report()
}

// Tick is called at 1 Hz.
func (r *Runtime) Tick() {
	if r.tracker.Tick() {
		r.report()
	}
}

func (r *Runtime) report() {
	snap := r.tracker.Snapshot()
	if err := status.Publish(r.store, r.dev.ID(), snap); err != nil {
		r.log.Warn("health publish failed", zap.Error(err))
	}
	if r.sw == nil {
		return
	}
	if err := r.sw.WriteStatus(snap); err != nil {
		r.log.Warn("status write failed", zap.Error(err))
	}
}
