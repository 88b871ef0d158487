// internal/profile/profile.go
package profile

// Profile describes the register map of one device model.
// Geometry and conversion only: where the device lives is daemon config.
type Profile struct {
	Info      Info      `json:"info"`
	ByteOrder string    `json:"byte_order,omitempty"`
	WordOrder string    `json:"word_order,omitempty"`
	Rounding  string    `json:"rounding,omitempty"`
	Channels  []Channel `json:"channels,omitempty"`
	Elements  []Element `json:"elements"`
}

type Info struct {
	Vendor      string `json:"vendor"`
	Model       string `json:"model"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// Channel optionally fixes the kind and unit of a channel.
type Channel struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// Element is exactly one of: a mapped element (Channels), a fault
// bitfield (Bits) or reserved space (Dummy).
type Element struct {
	Area      string `json:"area"`
	Address   uint32 `json:"address"`
	Type      string `json:"type,omitempty"`
	Length    uint16 `json:"length,omitempty"`
	Access    string `json:"access,omitempty"`
	Priority  string `json:"priority,omitempty"`
	ByteOrder string `json:"byte_order,omitempty"`
	WordOrder string `json:"word_order,omitempty"`

	Dummy    uint16   `json:"dummy,omitempty"`
	Channels []Target `json:"channels,omitempty"`
	Bits     []Bit    `json:"bits,omitempty"`
}

type Target struct {
	ID        string   `json:"id"`
	Converter []string `json:"converter,omitempty"`
}

type Bit struct {
	Bit     uint8  `json:"bit"`
	Channel string `json:"channel"`
}
