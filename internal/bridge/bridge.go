// internal/bridge/bridge.go
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/mqtt"
)

// DefaultBuffer is the number of updates held between the store and the
// broker before updates are dropped.
const DefaultBuffer = 1024

var ErrBadTopic = errors.New("bridge: bad set topic")

// Publisher is the broker side. *mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(filter string, h mqtt.Handler) error
}

type Options struct {
	Prefix string
	Retain bool
	Buffer int
}

// Bridge mirrors channel updates to "<prefix>/<device>/<channel>" and
// turns "<prefix>/<device>/<channel>/set" messages into channel writes.
type Bridge struct {
	store *channel.Store
	pub   Publisher
	codec Codec
	opts  Options
	log   *zap.Logger

	updates chan channel.Update
	dropped atomic.Uint64
}

func New(store *channel.Store, pub Publisher, codec Codec, o Options, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	if o.Buffer <= 0 {
		o.Buffer = DefaultBuffer
	}
	return &Bridge{
		store:   store,
		pub:     pub,
		codec:   codec,
		opts:    o,
		log:     log,
		updates: make(chan channel.Update, o.Buffer),
	}
}

// StateTopic is the topic a channel's value is published on.
func (b *Bridge) StateTopic(id channel.ID) string {
	return b.opts.Prefix + "/" + string(id)
}

// SetFilter is the subscription that carries write requests.
func (b *Bridge) SetFilter() string {
	return b.opts.Prefix + "/+/+/set"
}

// Start hooks the bridge into the store and subscribes to set topics.
// Updates flow once Run is started.
func (b *Bridge) Start() error {
	b.store.Subscribe(b.enqueue)
	if err := b.pub.Subscribe(b.SetFilter(), b.handleSet); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}

// enqueue runs on the publishing goroutine and must not block.
func (b *Bridge) enqueue(u channel.Update) {
	select {
	case b.updates <- u:
	default:
		if n := b.dropped.Add(1); n == 1 || n%1000 == 0 {
			b.log.Warn("update buffer full, dropping", zap.Uint64("dropped", n))
		}
	}
}

// Dropped returns the number of updates lost to a full buffer.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Run publishes the current value of every channel, then forwards
// updates until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for _, id := range b.store.IDs() {
		snap, ok := b.store.Get(id)
		if !ok || snap.At.IsZero() {
			continue
		}
		b.publish(channel.Update{ID: id, Value: snap.Value, At: snap.At})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-b.updates:
			b.publish(u)
		}
	}
}

func (b *Bridge) publish(u channel.Update) {
	var unit string
	if d, ok := b.store.Decl(u.ID); ok {
		unit = d.Unit
	}

	payload, err := b.codec.Encode(u.Value, unit, u.At)
	if err != nil {
		b.log.Warn("encode failed", zap.String("channel", string(u.ID)), zap.Error(err))
		return
	}
	if err := b.pub.Publish(b.StateTopic(u.ID), payload, b.opts.Retain); err != nil {
		b.log.Debug("publish failed", zap.String("channel", string(u.ID)), zap.Error(err))
	}
}

func (b *Bridge) handleSet(topic string, payload []byte) {
	id, err := b.parseSetTopic(topic)
	if err != nil {
		b.log.Warn("ignored set", zap.String("topic", topic), zap.Error(err))
		return
	}

	v, err := b.codec.Decode(payload)
	if err != nil {
		b.log.Warn("ignored set", zap.String("channel", string(id)), zap.Error(err))
		return
	}

	if err := b.store.Write(id, v); err != nil {
		b.log.Warn("write rejected",
			zap.String("channel", string(id)),
			zap.Stringer("value", v),
			zap.Error(err))
		return
	}
	b.log.Debug("write queued", zap.String("channel", string(id)), zap.Stringer("value", v))
}

func (b *Bridge) parseSetTopic(topic string) (channel.ID, error) {
	rest, ok := strings.CutPrefix(topic, b.opts.Prefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	rest, ok = strings.CutSuffix(rest, "/set")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	dev, name, ok := strings.Cut(rest, "/")
	if !ok || dev == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	return channel.Qualify(dev, name), nil
}
