// internal/mqtt/publish.go
package mqtt

import (
	"fmt"
	"strings"
)

// Publish sends payload with the configured QoS.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if len(payload) > maxPayload {
		return fmt.Errorf("%w: payload %d bytes", ErrPublishFailed, len(payload))
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	tok := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	if !tok.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: %s: timeout", ErrPublishFailed, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, topic, err)
	}
	return nil
}

// ValidatePublishTopic rejects empty topics and wildcards.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcard in %q", ErrInvalidTopic, topic)
	}
	return nil
}
