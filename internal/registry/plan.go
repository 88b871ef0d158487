// internal/registry/plan.go
package registry

import (
	"sort"

	"github.com/tamzrod/regmap/internal/element"
)

// Protocol limits for a single Modbus read request.
const (
	MaxReadRegisters = 125
	MaxReadBits      = 2000
)

// PlanOptions tunes how entries are grouped into read transactions.
type PlanOptions struct {
	// MaxGap is the number of unregistered units that may be read and
	// discarded to join two entries into one request. Reserved (dummy)
	// units do not count against it.
	MaxGap uint16

	// MaxQuantity caps the units per request; 0 uses the protocol limit
	// of the area.
	MaxQuantity uint16
}

// Transaction is one planned read request.
// Geometry only: the bus driver decides how and when to issue it.
type Transaction struct {
	Area     Area
	Start    uint32
	Quantity uint16
	Priority Priority
	Entries  int
}

// Range returns the address range the transaction reads.
func (t Transaction) Range() Range {
	return Range{Area: t.Area, Start: t.Start, Length: t.Quantity}
}

func maxQuantity(a Area, o PlanOptions) uint32 {
	limit := uint32(MaxReadRegisters)
	if a.Unit().Width() == 1 {
		limit = MaxReadBits
	}
	if o.MaxQuantity > 0 && uint32(o.MaxQuantity) < limit {
		return uint32(o.MaxQuantity)
	}
	return limit
}

// PlanReadTransactions groups readable entries into as few requests as the
// area limits allow. The result is ordered High before Low, then by start
// address ascending. Each transaction only joins entries of one priority.
// Reserved ranges never start a request of their own. A request never
// spans a write-only entry.
func (r *Registry) PlanReadTransactions(o PlanOptions) ([]Transaction, error) {
	if !r.sealed {
		return nil, ErrNotSealed
	}

	type key struct {
		prio Priority
		area Area
	}
	groups := make(map[key][]Entry)
	for area, list := range r.entries {
		if !area.Pollable() {
			continue
		}
		for _, e := range list {
			if !e.Access.Readable() || element.IsDummy(e.Element) {
				continue
			}
			k := key{prio: e.Priority, area: area}
			groups[k] = append(groups[k], e)
		}
	}

	var out []Transaction
	for k, list := range groups {
		// list keeps the registry's address order
		limit := maxQuantity(k.area, o)

		var cur *Transaction
		for _, e := range list {
			start := e.Range.Start
			end := uint64(e.Range.End())

			if cur != nil {
				curEnd := uint64(cur.Start) + uint64(cur.Quantity) - 1
				gap := uint64(start) - curEnd - 1
				gap -= r.reserved(k.area, curEnd+1, uint64(start))
				span := end - uint64(cur.Start) + 1
				if gap <= uint64(o.MaxGap) && span <= uint64(limit) && !r.writeOnly(k.area, curEnd+1, uint64(start)) {
					cur.Quantity = uint16(span)
					cur.Entries++
					continue
				}
				out = append(out, *cur)
			}

			cur = &Transaction{
				Area:     k.area,
				Start:    start,
				Quantity: e.Range.Length,
				Priority: k.prio,
				Entries:  1,
			}
		}
		if cur != nil {
			out = append(out, *cur)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Area < b.Area
	})
	return out, nil
}

// writeOnly reports whether a write-only entry overlaps [from, to).
// Such registers are never read, not even as gap filler.
func (r *Registry) writeOnly(a Area, from, to uint64) bool {
	for _, e := range r.entries[a] {
		if e.Access.Readable() {
			continue
		}
		if uint64(e.Range.Start) < to && uint64(e.Range.End()) >= from {
			return true
		}
	}
	return false
}

// reserved counts the dummy units inside [from, to).
func (r *Registry) reserved(a Area, from, to uint64) uint64 {
	var n uint64
	for _, e := range r.entries[a] {
		if !element.IsDummy(e.Element) {
			continue
		}
		lo := max(uint64(e.Range.Start), from)
		hi := min(uint64(e.Range.End())+1, to)
		if hi > lo {
			n += hi - lo
		}
	}
	return n
}
