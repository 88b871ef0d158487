// internal/writer/builder.go
package writer

import (
	"time"

	"go.uber.org/multierr"

	cfg "github.com/tamzrod/regmap/internal/config"
	wmodbus "github.com/tamzrod/regmap/internal/writer/modbus"
)

// BuildStatusPlan converts one device's status config into a plan.
// Returns nil when the device did not opt in.
func BuildStatusPlan(d cfg.DeviceConfig) *StatusPlan {
	if d.Status == nil {
		return nil
	}
	return &StatusPlan{
		Endpoint:   d.Status.Endpoint,
		UnitID:     d.Status.UnitID,
		BaseSlot:   d.Status.Slot,
		DeviceName: d.Status.DeviceName,
	}
}

// BuildEndpointClients creates one TCP client per unique status endpoint.
func BuildEndpointClients(devices []cfg.DeviceConfig) (map[string]*wmodbus.EndpointClient, func() error, error) {
	timeouts := map[string]time.Duration{}
	for _, d := range devices {
		if d.Status == nil {
			continue
		}
		to := time.Duration(d.Source.TimeoutMs) * time.Millisecond
		if to > timeouts[d.Status.Endpoint] {
			timeouts[d.Status.Endpoint] = to
		}
	}

	clients := make(map[string]*wmodbus.EndpointClient)
	var closers []func() error

	closeAll := func() error { return closeEach(closers) }

	for endpoint, timeout := range timeouts {
		c, err := wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: endpoint,
			Timeout:  timeout,
		})
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		clients[endpoint] = c
		closers = append(closers, c.Close)
	}

	return clients, closeAll, nil
}

// closeEach runs every closer and reports all failures.
func closeEach(closers []func() error) error {
	var errs error
	for _, fn := range closers {
		errs = multierr.Append(errs, fn())
	}
	return errs
}
