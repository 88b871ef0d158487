// internal/mqtt/subscribe.go
package mqtt

import (
	"fmt"
	"strings"
)

// Subscribe registers h for a filter. The subscription survives
// reconnects.
func (c *Client) Subscribe(filter string, h Handler) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	qos := byte(c.cfg.QoS)

	c.mu.Lock()
	c.subs[filter] = subscription{qos: qos, handler: h}
	c.mu.Unlock()

	if !c.IsConnected() {
		// restored by onConnect
		return nil
	}

	tok := c.client.Subscribe(filter, qos, wrap(c.log, h))
	if !tok.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: %s: timeout", ErrSubscribeFailed, filter)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSubscribeFailed, filter, err)
	}
	return nil
}

// ValidateFilter checks wildcard placement: '+' must fill a whole level
// and '#' must be the last level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	levels := strings.Split(filter, "/")
	for i, l := range levels {
		switch {
		case l == "#" && i != len(levels)-1:
			return fmt.Errorf("%w: '#' not last in %q", ErrInvalidTopic, filter)
		case l != "+" && l != "#" && strings.ContainsAny(l, "+#"):
			return fmt.Errorf("%w: partial wildcard in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// Match reports whether topic matches filter.
func Match(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, l := range f {
		if l == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if l != "+" && l != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
