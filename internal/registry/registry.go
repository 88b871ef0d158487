// internal/registry/registry.go
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tamzrod/regmap/internal/element"
)

var (
	ErrOverlap   = errors.New("registry: address overlap")
	ErrSealed    = errors.New("registry: sealed")
	ErrNotSealed = errors.New("registry: not sealed")
	ErrGeometry  = errors.New("registry: range does not match element")
)

// Area is an independent address space of a device.
// Modbus areas use the function code of their read request.
type Area uint8

const (
	Coils            Area = 1
	DiscreteInputs   Area = 2
	HoldingRegisters Area = 3
	InputRegisters   Area = 4
	// Frames addresses CAN payload bytes as id<<3 | offset.
	Frames Area = 0x80
)

func (a Area) String() string {
	switch a {
	case Coils:
		return "coils"
	case DiscreteInputs:
		return "discrete_inputs"
	case HoldingRegisters:
		return "holding_registers"
	case InputRegisters:
		return "input_registers"
	case Frames:
		return "frames"
	}
	return fmt.Sprintf("area(%d)", uint8(a))
}

// ParseArea maps a profile name to an Area.
func ParseArea(s string) (Area, error) {
	switch s {
	case "coil", "coils":
		return Coils, nil
	case "discrete_input", "discrete_inputs":
		return DiscreteInputs, nil
	case "holding", "holding_register", "holding_registers":
		return HoldingRegisters, nil
	case "input", "input_register", "input_registers":
		return InputRegisters, nil
	case "frame", "frames", "can":
		return Frames, nil
	}
	return 0, fmt.Errorf("registry: unknown area %q", s)
}

// Unit returns the addressing unit of the area.
func (a Area) Unit() element.Unit {
	switch a {
	case Coils, DiscreteInputs:
		return element.Bit
	case Frames:
		return element.Byte
	}
	return element.Word
}

// Pollable reports whether the area is read by request. CAN frames are
// pushed by the bus and never planned.
func (a Area) Pollable() bool {
	return a != Frames
}

// Access is the direction an entry may be used in.
type Access uint8

const (
	ReadOnly Access = iota
	WriteOnly
	ReadWrite
)

func (a Access) Readable() bool { return a != WriteOnly }
func (a Access) Writable() bool { return a != ReadOnly }

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read_only"
	case WriteOnly:
		return "write_only"
	case ReadWrite:
		return "read_write"
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

func ParseAccess(s string) (Access, error) {
	switch s {
	case "", "read_only", "ro":
		return ReadOnly, nil
	case "write_only", "wo":
		return WriteOnly, nil
	case "read_write", "rw":
		return ReadWrite, nil
	}
	return 0, fmt.Errorf("registry: unknown access %q", s)
}

// Priority orders read transactions. It is a hint for the bus driver.
type Priority uint8

const (
	High Priority = iota
	Low
)

func (p Priority) String() string {
	if p == High {
		return "high"
	}
	return "low"
}

func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return High, nil
	case "", "low":
		return Low, nil
	}
	return 0, fmt.Errorf("registry: unknown priority %q", s)
}

// Range is a run of units in one area.
type Range struct {
	Area   Area
	Start  uint32
	Length uint16
}

// End returns the last address of the range (inclusive).
func (r Range) End() uint32 {
	return r.Start + uint32(r.Length) - 1
}

func (r Range) overlaps(o Range) bool {
	return r.Area == o.Area && !(r.End() < o.Start || r.Start > o.End())
}

// RangeOf returns the range covered by e in area a.
func RangeOf(a Area, e element.Element) Range {
	return Range{Area: a, Start: e.Address(), Length: e.Length()}
}

// Entry is one registered element.
type Entry struct {
	Range    Range
	Element  element.Element
	Access   Access
	Priority Priority
}

// Registry is the per-device address table.
//
// It is built by a single owner (Building) and then sealed. A sealed
// registry is immutable and safe for concurrent readers without locking.
type Registry struct {
	sealed  bool
	entries map[Area][]Entry // sorted by start address
}

func New() *Registry {
	return &Registry{entries: make(map[Area][]Entry)}
}

// Register adds e at rng. rng must describe e's own geometry.
// An overlap with another element is a configuration error and leaves
// the registry unchanged.
func (r *Registry) Register(rng Range, e element.Element, access Access, prio Priority) error {
	if r.sealed {
		return ErrSealed
	}
	if e == nil {
		return fmt.Errorf("%w: nil element", ErrGeometry)
	}
	if rng.Length == 0 || rng != RangeOf(rng.Area, e) {
		return fmt.Errorf("%w: range %s %d+%d, element %d+%d",
			ErrGeometry, rng.Area, rng.Start, rng.Length, e.Address(), e.Length())
	}
	if e.Unit() != rng.Area.Unit() {
		return fmt.Errorf("%w: %s element in %s area", ErrGeometry, e.Unit(), rng.Area)
	}
	if uint64(rng.Start)+uint64(rng.Length) > 1<<32 {
		return fmt.Errorf("%w: range %d+%d exceeds address space", ErrGeometry, rng.Start, rng.Length)
	}

	list := r.entries[rng.Area]
	i := sort.Search(len(list), func(i int) bool { return list[i].Range.Start >= rng.Start })

	// only the neighbours can overlap in a sorted, non-overlapping list
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(list) {
			continue
		}
		if list[j].Range.overlaps(rng) {
			o := list[j].Range
			return fmt.Errorf("%w: %s %d-%d overlaps %d-%d",
				ErrOverlap, rng.Area, rng.Start, rng.End(), o.Start, o.End())
		}
	}

	list = append(list, Entry{})
	copy(list[i+1:], list[i:])
	list[i] = Entry{Range: rng, Element: e, Access: access, Priority: prio}
	r.entries[rng.Area] = list
	return nil
}

// Seal ends the Building phase. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	return r.sealed
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	n := 0
	for _, l := range r.entries {
		n += len(l)
	}
	return n
}

// Entries returns all entries ordered by area then address.
func (r *Registry) Entries() []Entry {
	areas := make([]Area, 0, len(r.entries))
	for a := range r.entries {
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i] < areas[j] })

	out := make([]Entry, 0, r.Len())
	for _, a := range areas {
		out = append(out, r.entries[a]...)
	}
	return out
}

// Resolve returns the entry whose range contains addr.
// It only answers on a sealed registry.
func (r *Registry) Resolve(a Area, addr uint32) (Entry, bool) {
	if !r.sealed {
		return Entry{}, false
	}
	list := r.entries[a]
	i := sort.Search(len(list), func(i int) bool { return list[i].Range.End() >= addr })
	if i < len(list) && list[i].Range.Start <= addr {
		return list[i], true
	}
	return Entry{}, false
}

// ResolveRange returns the entries fully contained in [start, start+n).
// Entries that are only partly covered are returned in partial.
func (r *Registry) ResolveRange(a Area, start uint32, n int) (full, partial []Entry) {
	if !r.sealed || n <= 0 {
		return nil, nil
	}
	end := uint64(start) + uint64(n) - 1

	list := r.entries[a]
	i := sort.Search(len(list), func(i int) bool { return list[i].Range.End() >= start })
	for ; i < len(list); i++ {
		e := list[i]
		if uint64(e.Range.Start) > end {
			break
		}
		if e.Range.Start >= start && uint64(e.Range.End()) <= end {
			full = append(full, e)
		} else {
			partial = append(partial, e)
		}
	}
	return full, partial
}
