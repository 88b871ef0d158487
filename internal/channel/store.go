// internal/channel/store.go
package channel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tamzrod/regmap/internal/value"
)

var (
	ErrUnknownChannel = errors.New("channel: unknown channel")
	ErrDuplicate      = errors.New("channel: duplicate declaration")
	ErrNotWritable    = errors.New("channel: not writable")
	ErrNoWriteHandler = errors.New("channel: no write handler")
)

// ID names a channel. Device channels are qualified as "<device>/<name>".
type ID string

// Qualify builds the store-wide ID of a device channel.
func Qualify(device, name string) ID {
	return ID(device + "/" + name)
}

// Split returns the device and channel name of a qualified ID.
func (id ID) Split() (device, name string) {
	d, n, ok := strings.Cut(string(id), "/")
	if !ok {
		return "", string(id)
	}
	return d, n
}

// Decl declares a channel. KindNull accepts any kind unchanged.
// Rounding applies when a published value has to be coerced into Kind.
type Decl struct {
	ID       ID
	Kind     value.Kind
	Unit     string
	Writable bool
	Rounding value.Rounding
}

// Snapshot is the current state of one channel.
type Snapshot struct {
	Value value.Value
	At    time.Time
}

// Update is delivered to subscribers after every publish.
type Update struct {
	ID    ID
	Value value.Value
	At    time.Time
}

// WriteHandler receives write requests for one channel.
type WriteHandler func(v value.Value) error

type entry struct {
	decl Decl
	cur  atomic.Pointer[Snapshot]
}

// Store holds channel values. Publishing is atomic per channel and
// last-write-wins. Readers never block publishers of other channels.
type Store struct {
	mu       sync.RWMutex
	channels map[ID]*entry
	writers  map[ID]WriteHandler
	subs     []func(Update)

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		channels: make(map[ID]*entry),
		writers:  make(map[ID]WriteHandler),
		now:      time.Now,
	}
}

func (s *Store) Declare(d Decl) error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownChannel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[d.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.ID)
	}
	e := &entry{decl: d}
	e.cur.Store(&Snapshot{Value: value.Null()})
	s.channels[d.ID] = e
	return nil
}

// Publish sets the value of a declared channel and notifies subscribers.
func (s *Store) Publish(id ID, v value.Value) error {
	s.mu.RLock()
	e, ok := s.channels[id]
	subs := s.subs
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}

	if e.decl.Kind != value.KindNull {
		c, err := value.Coerce(v, e.decl.Kind, e.decl.Rounding)
		if err != nil {
			return fmt.Errorf("channel %s: %w", id, err)
		}
		v = c
	}

	snap := &Snapshot{Value: v, At: s.now()}
	e.cur.Store(snap)

	for _, fn := range subs {
		fn(Update{ID: id, Value: v, At: snap.At})
	}
	return nil
}

func (s *Store) Get(id ID) (Snapshot, bool) {
	s.mu.RLock()
	e, ok := s.channels[id]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return *e.cur.Load(), true
}

func (s *Store) Decl(id ID) (Decl, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.channels[id]
	if !ok {
		return Decl{}, false
	}
	return e.decl, true
}

// IDs returns all declared channel IDs in sorted order.
func (s *Store) IDs() []ID {
	s.mu.RLock()
	out := make([]ID, 0, len(s.channels))
	for id := range s.channels {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Subscribe registers fn for every subsequent publish. fn runs on the
// publisher's goroutine and must not block.
func (s *Store) Subscribe(fn func(Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]func(Update), len(s.subs), len(s.subs)+1)
	copy(subs, s.subs)
	s.subs = append(subs, fn)
}

// SetWriteHandler routes write requests for id to fn.
func (s *Store) SetWriteHandler(id ID, fn WriteHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}
	if !e.decl.Writable {
		return fmt.Errorf("%w: %s", ErrNotWritable, id)
	}
	s.writers[id] = fn
	return nil
}

// Write hands a write request to the channel's owner. Errors from the
// owner are returned unchanged so callers can tell them apart.
func (s *Store) Write(id ID, v value.Value) error {
	s.mu.RLock()
	e, ok := s.channels[id]
	fn := s.writers[id]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}
	if !e.decl.Writable {
		return fmt.Errorf("%w: %s", ErrNotWritable, id)
	}
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNoWriteHandler, id)
	}
	return fn(v)
}
