// internal/status/tracker.go
package status

import (
	"errors"

	"go.uber.org/multierr"

	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/value"
)

// Tracker is runner-owned device health state. Not safe for concurrent use.
type Tracker struct {
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

func (t *Tracker) Snapshot() Snapshot {
	return t.snap
}

// Observe folds one poll cycle into the snapshot and reports whether
// anything changed. A cycle where some blocks or elements failed is
// stale; a cycle where nothing was read is an error.
func (t *Tracker) Observe(total, failed, decodeErrors int, err error) bool {
	next := t.snap
	next.FailedBlocks = clamp(failed)
	next.DecodeErrors = clamp(decodeErrors)

	switch {
	case err == nil && decodeErrors == 0:
		next.Health = HealthOK
	case err != nil && failed >= total:
		next.Health = HealthError
	default:
		next.Health = HealthStale
	}

	next.LastErrorCode = ErrorCode(err)

	// seconds_in_error increments on the 1Hz tick only; reset on recovery
	if next.Health == HealthOK {
		next.SecondsInError = 0
	}

	changed := next != t.snap
	t.snap = next
	return changed
}

// Tick advances seconds_in_error while the device is not OK.
// The counter saturates instead of wrapping.
func (t *Tracker) Tick() bool {
	if t.snap.Health == HealthOK || t.snap.SecondsInError == 65535 {
		return false
	}
	t.snap.SecondsInError++
	return true
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}
	return 1
}

func clamp(n int) uint16 {
	if n > 65535 {
		return 65535
	}
	if n < 0 {
		return 0
	}
	return uint16(n)
}

// ---- channels ----

// Health channel names, qualified per device.
const (
	ChannelHealth         = "_health"
	ChannelLastErrorCode  = "_last_error_code"
	ChannelSecondsInError = "_seconds_in_error"
	ChannelFailedBlocks   = "_failed_blocks"
	ChannelDecodeErrors   = "_decode_errors"
)

// Declare adds the health channels of a device to store.
func Declare(store *channel.Store, deviceID string) error {
	decls := []channel.Decl{
		{ID: channel.Qualify(deviceID, ChannelHealth), Kind: value.KindString},
		{ID: channel.Qualify(deviceID, ChannelLastErrorCode), Kind: value.KindInt32},
		{ID: channel.Qualify(deviceID, ChannelSecondsInError), Kind: value.KindInt32, Unit: "s"},
		{ID: channel.Qualify(deviceID, ChannelFailedBlocks), Kind: value.KindInt32},
		{ID: channel.Qualify(deviceID, ChannelDecodeErrors), Kind: value.KindInt32},
	}
	for _, d := range decls {
		if err := store.Declare(d); err != nil {
			return err
		}
	}
	return nil
}

// Publish writes a snapshot to the device's health channels.
func Publish(store *channel.Store, deviceID string, s Snapshot) error {
	var errs error
	pub := func(name string, v value.Value) {
		errs = multierr.Append(errs, store.Publish(channel.Qualify(deviceID, name), v))
	}

	pub(ChannelHealth, value.String(HealthName(s.Health)))
	pub(ChannelLastErrorCode, value.Int32(int32(s.LastErrorCode)))
	pub(ChannelSecondsInError, value.Int32(int32(s.SecondsInError)))
	pub(ChannelFailedBlocks, value.Int32(int32(s.FailedBlocks)))
	pub(ChannelDecodeErrors, value.Int32(int32(s.DecodeErrors)))

	return errs
}
