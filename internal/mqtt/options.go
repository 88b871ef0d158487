// internal/mqtt/options.go
package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tamzrod/regmap/internal/config"
)

const (
	connectTimeout   = 10 * time.Second
	operationTimeout = 5 * time.Second
	keepAlive        = 30 * time.Second
	maxReconnect     = 60 * time.Second

	maxPayload = 1 << 20

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// StatusTopic is the retained bridge availability topic.
func StatusTopic(prefix string) string {
	return prefix + "/_bridge/status"
}

// ClientID returns the configured id or a random one.
func ClientID(cfg config.MQTTConfig) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "regmap-" + uuid.NewString()[:8]
}

func buildOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Second)
	opts.SetMaxReconnectInterval(maxReconnect)
	opts.SetKeepAlive(keepAlive)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOrderMatters(false)

	// broker publishes "offline" if we vanish without Close
	opts.SetWill(StatusTopic(cfg.TopicPrefix), payloadOffline, byte(cfg.QoS), true)

	return opts
}
