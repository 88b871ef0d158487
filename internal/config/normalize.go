// internal/config/normalize.go
package config

import "strings"

// Defaults applied by Normalize.
const (
	DefaultTimeoutMs    = 1000
	DefaultIntervalMs   = 1000
	DefaultLowEvery     = 10
	DefaultMQTTPort     = 1883
	DefaultTopicPrefix  = "regmap"
	DefaultBaudRate     = 9600
	DefaultDataBits     = 8
	DefaultStopBits     = 1
	DefaultParity       = "E"
	deviceNameMaxLength = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	m := &cfg.MQTT
	if m.Port == 0 {
		m.Port = DefaultMQTTPort
	}
	if m.TopicPrefix == "" {
		m.TopicPrefix = DefaultTopicPrefix
	}
	m.TopicPrefix = strings.Trim(m.TopicPrefix, "/")
	if m.Payload == "" {
		m.Payload = "json"
	}

	for i := range cfg.Devices {
		d := &cfg.Devices[i]

		if d.Source.TimeoutMs == 0 {
			d.Source.TimeoutMs = DefaultTimeoutMs
		}
		if d.Poll.IntervalMs == 0 {
			d.Poll.IntervalMs = DefaultIntervalMs
		}
		if d.Poll.LowEvery == 0 {
			d.Poll.LowEvery = DefaultLowEvery
		}

		if d.Source.Protocol == ProtocolModbusRTU {
			if d.Source.BaudRate == 0 {
				d.Source.BaudRate = DefaultBaudRate
			}
			if d.Source.DataBits == 0 {
				d.Source.DataBits = DefaultDataBits
			}
			if d.Source.StopBits == 0 {
				d.Source.StopBits = DefaultStopBits
			}
			if d.Source.Parity == "" {
				d.Source.Parity = DefaultParity
			}
			d.Source.Parity = strings.ToUpper(d.Source.Parity)
		}

		// status device name: ASCII already validated, truncate only
		if d.Status != nil {
			if d.Status.DeviceName == "" {
				d.Status.DeviceName = d.ID
			}
			if len(d.Status.DeviceName) > deviceNameMaxLength {
				d.Status.DeviceName = d.Status.DeviceName[:deviceNameMaxLength]
			}
		}
	}
}
