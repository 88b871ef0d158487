// internal/poller/builder.go
package poller

import (
	"time"

	cfg "github.com/tamzrod/regmap/internal/config"
	"github.com/tamzrod/regmap/internal/device"
	pmodbus "github.com/tamzrod/regmap/internal/poller/modbus"
	"github.com/tamzrod/regmap/internal/registry"
)

// Build constructs a Poller for a Modbus device and wires the client
// lifecycle. The first connect happens on the first tick so one dead
// device never blocks startup. Connection is reused while healthy.
// On transport death, Poller discards the client and uses factory on a future tick.
func Build(d cfg.DeviceConfig, dev *device.Device) (*Poller, func() error, error) {
	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		return pmodbus.New(pmodbus.Config{
			Protocol: d.Source.Protocol,
			Endpoint: d.Source.Endpoint,
			UnitID:   d.Source.UnitID,
			Timeout:  time.Duration(d.Source.TimeoutMs) * time.Millisecond,
			BaudRate: d.Source.BaudRate,
			DataBits: d.Source.DataBits,
			Parity:   d.Source.Parity,
			StopBits: d.Source.StopBits,
		})
	}

	txs, err := dev.Plan(registry.PlanOptions{
		MaxGap:      d.Plan.MaxGap,
		MaxQuantity: d.Plan.MaxQuantity,
	})
	if err != nil {
		return nil, nil, err
	}
	reads, err := BlocksFromPlan(txs)
	if err != nil {
		return nil, nil, err
	}

	p, err := New(
		Config{
			DeviceID: d.ID,
			Interval: time.Duration(d.Poll.IntervalMs) * time.Millisecond,
			LowEvery: d.Poll.LowEvery,
			Reads:    reads,
		},
		nil,
		factory,
	)
	if err != nil {
		return nil, nil, err
	}

	return p, p.Close, nil
}
