// cmd/regmapd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tamzrod/regmap/internal/bridge"
	"github.com/tamzrod/regmap/internal/can"
	"github.com/tamzrod/regmap/internal/channel"
	"github.com/tamzrod/regmap/internal/config"
	"github.com/tamzrod/regmap/internal/logging"
	"github.com/tamzrod/regmap/internal/mqtt"
	"github.com/tamzrod/regmap/internal/pipeline"
	"github.com/tamzrod/regmap/internal/poller"
	"github.com/tamzrod/regmap/internal/profile"
	"github.com/tamzrod/regmap/internal/status"
	"github.com/tamzrod/regmap/internal/writer"
)

// staleFrames is how many frame intervals a CAN device may stay silent.
const staleFrames = 3

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: regmapd <config.yaml>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "regmapd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	log, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}, "regmapd")
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := channel.NewStore()

	loader, err := profile.NewLoader(cfg.Profiles.Dirs...)
	if err != nil {
		return err
	}

	// ---- status endpoints (shared across devices) ----
	statusClients, closeStatus, err := writer.BuildEndpointClients(cfg.Devices)
	if err != nil {
		return fmt.Errorf("status endpoints: %w", err)
	}
	defer closeStatus()

	// --------------------
	// Build per-device pipelines
	// --------------------

	var (
		wg      sync.WaitGroup
		closers []func() error
		runners []func(context.Context)
		routers = map[string]*can.Router{}
	)

	for _, d := range cfg.Devices {
		dlog := log.With(zap.String("device", d.ID))

		prof, err := loader.Load(d.Profile)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.ID, err)
		}
		dev, err := profile.Build(prof, d.ID, store, log.Named("device"), profile.BuildOptions{
			Rounding: d.Rounding,
			Queue:    d.Writes.Queue,
		})
		if err != nil {
			return fmt.Errorf("device %s: %w", d.ID, err)
		}
		if err := status.Declare(store, d.ID); err != nil {
			return fmt.Errorf("device %s: %w", d.ID, err)
		}

		// Status writer (optional per device)
		var sw writer.StatusWriter
		if plan := writer.BuildStatusPlan(d); plan != nil {
			if w, ok := writer.NewDeviceStatusWriter(plan, statusClients[plan.Endpoint]); ok {
				sw = w
			}
		}

		rt := pipeline.New(dev, store, sw, log.Named("pipeline"))

		switch d.Source.Protocol {
		case config.ProtocolCAN:
			r, ok := routers[d.Source.Endpoint]
			if !ok {
				bus, err := can.Dial(ctx, d.Source.Endpoint)
				if err != nil {
					return fmt.Errorf("device %s: %w", d.ID, err)
				}
				r = can.NewRouter(bus, log.Named("can").With(zap.String("iface", d.Source.Endpoint)))
				routers[d.Source.Endpoint] = r
			}
			interval := time.Duration(d.Poll.IntervalMs) * time.Millisecond
			fr := pipeline.NewFrameRunner(rt, staleFrames*interval)
			r.Attach(dev, fr.Sink())
			runners = append(runners, fr.Run)

		default:
			p, closePoller, err := poller.Build(d, dev)
			if err != nil {
				return fmt.Errorf("poller build failed (device=%s): %w", d.ID, err)
			}
			closers = append(closers, closePoller)
			runners = append(runners, func(ctx context.Context) {
				rt.RunModbus(ctx, p, pipeline.ModbusLink)
			})
		}

		dlog.Info("device ready",
			zap.String("profile", d.Profile),
			zap.String("protocol", d.Source.Protocol),
			zap.Stringer("instance", dev.Instance()),
			zap.Stringer("capabilities", dev.Capabilities()),
			zap.Int("channels", len(dev.Channels())))
	}

	// --------------------
	// MQTT bridge (subscribes to the store before any device runs)
	// --------------------

	if cfg.MQTT.Enabled {
		codec, err := bridge.NewCodec(cfg.MQTT.Payload)
		if err != nil {
			return err
		}
		client, err := mqtt.Connect(cfg.MQTT, log.Named("mqtt"))
		if err != nil {
			return err
		}
		defer client.Close()

		br := bridge.New(store, client, codec, bridge.Options{
			Prefix: cfg.MQTT.TopicPrefix,
			Retain: cfg.MQTT.Retain,
		}, log.Named("bridge"))
		if err := br.Start(); err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			br.Run(ctx)
		}()
	}

	// --------------------
	// Start
	// --------------------

	for _, fn := range runners {
		wg.Add(1)
		go func(fn func(context.Context)) {
			defer wg.Done()
			fn(ctx)
		}(fn)
	}

	for iface, r := range routers {
		wg.Add(1)
		go func(iface string, r *can.Router) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				log.Error("can bus failed", zap.String("iface", iface), zap.Error(err))
			}
		}(iface, r)
	}

	log.Info("regmapd started", zap.Int("devices", len(cfg.Devices)), zap.Bool("mqtt", cfg.MQTT.Enabled))

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()

	var errs error
	for _, fn := range closers {
		errs = multierr.Append(errs, fn())
	}
	if errs != nil {
		log.Warn("close failed", zap.Error(errs))
	}
	return nil
}
