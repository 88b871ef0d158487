// internal/status/snapshot.go
package status

// Snapshot is the health of one device at the end of a poll cycle or
// frame window. Every field maps to one health channel and one slot of
// the exported status block.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
	FailedBlocks   uint16 // blocks that failed in the last cycle
	DecodeErrors   uint16 // elements that failed to decode in the last cycle
}
