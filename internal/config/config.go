// internal/config/config.go
package config

type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Profiles ProfilesConfig `yaml:"profiles"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
	Payload     string `yaml:"payload"` // json | cbor
}

// ---- PROFILES ----

type ProfilesConfig struct {
	Dirs []string `yaml:"dirs"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	ID       string        `yaml:"id"`
	Profile  string        `yaml:"profile"`
	Rounding string        `yaml:"rounding"`
	Source   SourceConfig  `yaml:"source"`
	Poll     PollConfig    `yaml:"poll"`
	Plan     PlanConfig    `yaml:"plan"`
	Writes   WritesConfig  `yaml:"writes"`
	Status   *StatusConfig `yaml:"status"`
}

// ---- SOURCE ----

const (
	ProtocolModbusTCP = "modbus-tcp"
	ProtocolModbusRTU = "modbus-rtu"
	ProtocolCAN       = "can"
)

type SourceConfig struct {
	Protocol  string `yaml:"protocol"`
	Endpoint  string `yaml:"endpoint"` // host:port, serial device or CAN interface
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// serial line (modbus-rtu only)
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
}

// ---- POLL / PLAN ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	// LowEvery polls low priority transactions on every n-th cycle.
	LowEvery int `yaml:"low_every"`
}

type PlanConfig struct {
	MaxGap      uint16 `yaml:"max_gap"`
	MaxQuantity uint16 `yaml:"max_quantity"`
}

type WritesConfig struct {
	Queue int `yaml:"queue"`
}

// ---- STATUS BLOCK (optional, opt-in) ----

// StatusConfig mirrors device health into a Modbus status block.
type StatusConfig struct {
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	Slot       uint16 `yaml:"slot"`
	DeviceName string `yaml:"device_name"`
}
