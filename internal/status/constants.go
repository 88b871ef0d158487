// internal/status/constants.go
package status

// Device Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per device.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

const (
	// SlotHealthCode holds the device health state.
	SlotHealthCode = 0
	// SlotLastErrorCode holds the last raw error code.
	SlotLastErrorCode = 1
	// SlotSecondsInError holds the duration (in seconds) the device has been in error.
	SlotSecondsInError = 2
	// SlotFailedBlocks holds the failed read blocks of the last cycle.
	SlotFailedBlocks = 3
	// SlotDecodeErrors holds the elements that failed to decode in the last cycle.
	SlotDecodeErrors = 4
)

// Slots 5-10 are reserved.
const (
	SlotReservedStart = 5
	SlotReservedEnd   = 10
)

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 2 * SlotDeviceNameSlots

// ---- HEALTH CODES ----

const (
	HealthUnknown  uint16 = 0 // boot state
	HealthOK       uint16 = 1
	HealthError    uint16 = 2
	HealthStale    uint16 = 3 // some blocks or elements failed
	HealthDisabled uint16 = 4
)

// HealthName returns the channel value published for a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	}
	return "unknown"
}
