// internal/status/encode.go
package status

// Encode converts a Snapshot into a full device status block, name slots
// included. Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot, name string) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotFailedBlocks] = s.FailedBlocks
	regs[SlotDecodeErrors] = s.DecodeErrors

	copy(regs[SlotDeviceNameStart:], EncodeName(name))
	return regs
}

// Live returns the slots that change at runtime, indexed by slot.
func Live(s Snapshot) []uint16 {
	return []uint16{
		SlotHealthCode:     s.Health,
		SlotLastErrorCode:  s.LastErrorCode,
		SlotSecondsInError: s.SecondsInError,
		SlotFailedBlocks:   s.FailedBlocks,
		SlotDecodeErrors:   s.DecodeErrors,
	}
}

// EncodeName packs up to 16 ASCII characters into 8 registers, two
// bytes per register, big-endian. Non-printable bytes become '?'.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > DeviceNameMaxChars {
		b = b[:DeviceNameMaxChars]
	}
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < len(b); i += 2 {
		hi := uint16(b[i]) << 8
		var lo uint16
		if i+1 < len(b) {
			lo = uint16(b[i+1])
		}
		out[i/2] = hi | lo
	}
	return out
}
