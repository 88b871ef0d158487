// internal/mqtt/client.go
package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/config"
)

// Handler receives one inbound message.
type Handler func(topic string, payload []byte)

type subscription struct {
	qos     byte
	handler Handler
}

// Client wraps a paho client. Subscriptions are re-established after
// every reconnect since the session is clean.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	log    *zap.Logger

	connected atomic.Bool

	mu   sync.RWMutex
	subs map[string]subscription
}

// Connect dials the broker and waits for the first connection.
func Connect(cfg config.MQTTConfig, log *zap.Logger) (*Client, error) {
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQoS, cfg.QoS)
	}
	if log == nil {
		log = zap.NewNop()
	}

	id := ClientID(cfg)
	c := &Client{
		cfg:  cfg,
		log:  log.With(zap.String("broker", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)), zap.String("client_id", id)),
		subs: make(map[string]subscription),
	}

	opts := buildOptions(cfg, id)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onLost)
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, m pahomqtt.Message) {
		if !c.dispatch(m.Topic(), m.Payload()) {
			c.log.Debug("mqtt message without subscriber", zap.String("topic", m.Topic()))
		}
	})
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log.Info("mqtt reconnecting")
	})

	c.client = pahomqtt.NewClient(opts)

	tok := c.client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout", ErrConnectionFailed)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return c, nil
}

func (c *Client) onConnect(pc pahomqtt.Client) {
	c.connected.Store(true)
	c.log.Info("mqtt connected")

	pc.Publish(StatusTopic(c.cfg.TopicPrefix), byte(c.cfg.QoS), true, payloadOnline)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic, s := range c.subs {
		tok := pc.Subscribe(topic, s.qos, wrap(c.log, s.handler))
		if tok.WaitTimeout(operationTimeout) && tok.Error() == nil {
			continue
		}
		c.log.Warn("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(tok.Error()))
	}
}

// dispatch hands a message that paho could not route to every stored
// subscription whose filter matches. This covers deliveries that arrive
// before onConnect has restored the routes.
func (c *Client) dispatch(topic string, payload []byte) bool {
	c.mu.RLock()
	var hs []Handler
	for filter, s := range c.subs {
		if Match(filter, topic) {
			hs = append(hs, s.handler)
		}
	}
	c.mu.RUnlock()

	for _, h := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("mqtt handler panic", zap.String("topic", topic), zap.Any("panic", r))
				}
			}()
			h(topic, payload)
		}()
	}
	return len(hs) > 0
}

func (c *Client) onLost(_ pahomqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn("mqtt connection lost", zap.Error(err))
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Close publishes the offline marker and disconnects.
func (c *Client) Close() {
	if c.IsConnected() {
		tok := c.client.Publish(StatusTopic(c.cfg.TopicPrefix), byte(c.cfg.QoS), true, payloadOffline)
		tok.WaitTimeout(operationTimeout)
	}
	c.connected.Store(false)
	c.client.Disconnect(250)
	c.log.Info("mqtt disconnected")
}

// wrap converts a Handler and keeps a panicking handler from taking
// down paho's router goroutine.
func wrap(log *zap.Logger, h Handler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, m pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("mqtt handler panic", zap.String("topic", m.Topic()), zap.Any("panic", r))
			}
		}()
		h(m.Topic(), m.Payload())
	}
}
