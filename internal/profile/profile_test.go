// internal/profile/profile_test.go
package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/registry"
	"github.com/tamzrod/regmap/internal/value"
)

const meterProfile = `{
  "info": {"vendor": "Acme", "model": "M100"},
  "byte_order": "big_endian",
  "rounding": "half_even",
  "channels": [
    {"id": "Voltage", "type": "float64", "unit": "V"}
  ],
  "elements": [
    {"area": "input_registers", "address": 0, "type": "int16", "priority": "high",
     "channels": [{"id": "Voltage", "converter": ["scale_factor:1"]}]},
    {"area": "input_registers", "address": 1, "dummy": 2},
    {"area": "input_registers", "address": 3, "type": "uint16",
     "bits": [{"bit": 1, "channel": "PhaseLoss"}]},
    {"area": "holding_registers", "address": 100, "type": "int16", "access": "read_write",
     "channels": [{"id": "Limit"}, {"id": "LimitInverted", "converter": ["invert"]}]}
  ]
}`

func TestValidator_Parse(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	p, err := v.Parse([]byte(meterProfile))
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.Info.Vendor)
	assert.Len(t, p.Elements, 4)
	assert.Equal(t, uint16(2), p.Elements[1].Dummy)
	assert.Equal(t, []string{"scale_factor:1"}, p.Elements[0].Channels[0].Converter)
}

func TestValidator_Rejects(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	cases := map[string]string{
		"not json":         `{`,
		"missing info":     `{"elements": [{"area": "coils", "address": 0, "dummy": 1}]}`,
		"no elements":      `{"info": {"vendor": "a", "model": "b"}, "elements": []}`,
		"bad channel id":   `{"info": {"vendor": "a", "model": "b"}, "elements": [{"area": "coils", "address": 0, "type": "bool", "channels": [{"id": "1bad"}]}]}`,
		"missing area":     `{"info": {"vendor": "a", "model": "b"}, "elements": [{"address": 0, "dummy": 1}]}`,
		"channels no type": `{"info": {"vendor": "a", "model": "b"}, "elements": [{"area": "coils", "address": 0, "channels": [{"id": "On"}]}]}`,
		"unknown field":    `{"info": {"vendor": "a", "model": "b"}, "bogus": 1, "elements": [{"area": "coils", "address": 0, "dummy": 1}]}`,
	}
	for name, doc := range cases {
		_, err := v.Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestBuild(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)
	p, err := v.Parse([]byte(meterProfile))
	require.NoError(t, err)

	store := channel.NewStore()
	dev, err := Build(p, "meter", store, nil, BuildOptions{Queue: 4})
	require.NoError(t, err)

	assert.True(t, dev.Capabilities().Has(device.Readable|device.Writable|device.FaultReporting))

	rep := dev.Ingest(registry.InputRegisters, 0, []byte{0x04, 0xD2, 0, 0, 0, 0, 0x00, 0x02})
	require.NoError(t, rep.Err)
	assert.Equal(t, 2, rep.Applied)

	snap, ok := store.Get(channel.Qualify("meter", "Voltage"))
	require.True(t, ok)
	f, ok := snap.Value.AsFloat64()
	require.True(t, ok)
	assert.InDelta(t, 123.4, f, 1e-9)
	assert.Equal(t, value.KindFloat64, snap.Value.Kind())

	snap, _ = store.Get(channel.Qualify("meter", "PhaseLoss"))
	assert.True(t, value.Bool(true).Equal(snap.Value))

	require.NoError(t, store.Write(channel.Qualify("meter", "LimitInverted"), value.Int16(-7)))
	req := <-dev.Writes()
	assert.Equal(t, uint32(100), req.Address)
	assert.Equal(t, []byte{0x00, 0x07}, req.Data)
}

func TestBuild_CollectsEveryError(t *testing.T) {
	p := &Profile{
		Info: Info{Vendor: "a", Model: "b"},
		Elements: []Element{
			{Area: "bogus", Address: 0, Type: "int16", Channels: []Target{{ID: "A"}}},
			{Area: "input_registers", Address: 0, Type: "int16", Access: "read_write", Channels: []Target{{ID: "B"}}},
			{Area: "holding_registers", Address: 0, Type: "int16", Channels: []Target{{ID: "C", Converter: []string{"scale_factor"}}}},
		},
	}

	_, err := Build(p, "x", channel.NewStore(), nil, BuildOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrAreaReadOnly)
	assert.Contains(t, err.Error(), "element 0")
	assert.Contains(t, err.Error(), "element 2")
}

func TestBuild_RoundingOverride(t *testing.T) {
	p := &Profile{Info: Info{Vendor: "a", Model: "b"}, Elements: []Element{{Area: "coils", Address: 0, Dummy: 1}}}
	_, err := Build(p, "x", nil, nil, BuildOptions{Rounding: "sideways"})
	assert.Error(t, err)
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m100.json"), []byte(meterProfile), 0o644))

	l, err := NewLoader(dir)
	require.NoError(t, err)

	p, err := l.Load("m100")
	require.NoError(t, err)
	assert.Equal(t, "M100", p.Info.Model)

	again, err := l.Load("m100")
	require.NoError(t, err)
	assert.Same(t, p, again, "profiles are cached by name")

	byPath, err := l.Load(filepath.Join(dir, "m100.json"))
	require.NoError(t, err)
	assert.Equal(t, p.Info, byPath.Info)

	_, err = l.Load("missing")
	assert.Error(t, err)
}

func TestLoader_ReportsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"info": {}}`), 0o644))

	l, err := NewLoader(dir)
	require.NoError(t, err)
	_, err = l.Load("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}
