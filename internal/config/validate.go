// internal/config/validate.go
package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	if err := validateMQTT(cfg.MQTT); err != nil {
		return err
	}

	if len(cfg.Devices) == 0 {
		return fmt.Errorf("config: at least one device required")
	}

	// ------------------------------------------------------------
	// DEVICE IDENTITY + SOURCE
	// ------------------------------------------------------------

	seen := make(map[string]struct{}, len(cfg.Devices))

	for _, d := range cfg.Devices {
		if d.ID == "" {
			return fmt.Errorf("device: id required")
		}
		if strings.ContainsAny(d.ID, "/#+ ") {
			return fmt.Errorf("device %q: id must not contain '/', '#', '+' or spaces", d.ID)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("device %q: duplicate id", d.ID)
		}
		seen[d.ID] = struct{}{}

		if d.Profile == "" {
			return fmt.Errorf("device %q: profile required", d.ID)
		}
		if err := validateSource(d); err != nil {
			return err
		}
		if d.Poll.IntervalMs < 0 || d.Poll.LowEvery < 0 {
			return fmt.Errorf("device %q: poll values must be >= 0", d.ID)
		}
		if d.Writes.Queue < 0 {
			return fmt.Errorf("device %q: writes.queue must be >= 0", d.ID)
		}
	}

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK VALIDATION (OPT-IN)
	// ------------------------------------------------------------

	// key = endpoint | unit_id | slot
	statusOwner := make(map[string]string)

	for _, d := range cfg.Devices {
		if d.Status == nil {
			continue
		}
		s := d.Status

		if s.Endpoint == "" {
			return fmt.Errorf("device %q: status.endpoint required", d.ID)
		}
		for i := 0; i < len(s.DeviceName); i++ {
			if s.DeviceName[i] > 0x7F {
				return fmt.Errorf("device %q: status.device_name must contain ASCII characters only", d.ID)
			}
		}

		key := fmt.Sprintf("%s|%d|%d", s.Endpoint, s.UnitID, s.Slot)
		if prev, exists := statusOwner[key]; exists {
			return fmt.Errorf(
				"status slot collision: endpoint=%s unit_id=%d slot=%d used by devices %q and %q",
				s.Endpoint, s.UnitID, s.Slot, prev, d.ID,
			)
		}
		statusOwner[key] = d.ID
	}

	return nil
}

func validateMQTT(m MQTTConfig) error {
	if !m.Enabled {
		return nil
	}
	if m.Host == "" {
		return fmt.Errorf("mqtt: host required when enabled")
	}
	if m.Port < 0 || m.Port > 65535 {
		return fmt.Errorf("mqtt: port %d out of range", m.Port)
	}
	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1, or 2")
	}
	switch m.Payload {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("mqtt: payload must be json or cbor, got %q", m.Payload)
	}
	if strings.ContainsAny(m.TopicPrefix, "#+") {
		return fmt.Errorf("mqtt: topic_prefix must not contain wildcards")
	}
	return nil
}

func validateSource(d DeviceConfig) error {
	s := d.Source

	if s.Endpoint == "" {
		return fmt.Errorf("device %q: source.endpoint required", d.ID)
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("device %q: source.timeout_ms must be >= 0", d.ID)
	}

	switch s.Protocol {
	case ProtocolModbusTCP, ProtocolCAN:
	case ProtocolModbusRTU:
		switch strings.ToUpper(s.Parity) {
		case "", "N", "E", "O":
		default:
			return fmt.Errorf("device %q: source.parity must be N, E or O", d.ID)
		}
		if s.DataBits != 0 && (s.DataBits < 5 || s.DataBits > 8) {
			return fmt.Errorf("device %q: source.data_bits must be 5..8", d.ID)
		}
		if s.StopBits != 0 && s.StopBits != 1 && s.StopBits != 2 {
			return fmt.Errorf("device %q: source.stop_bits must be 1 or 2", d.ID)
		}
	default:
		return fmt.Errorf("device %q: unknown source.protocol %q", d.ID, s.Protocol)
	}

	if s.Protocol == ProtocolCAN && d.Status != nil {
		return fmt.Errorf("device %q: status block needs a polled source", d.ID)
	}
	return nil
}
