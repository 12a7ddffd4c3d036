package hardware

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/rpihome-core/internal/infrastructure/config"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/logging"
)

// WaterSensor reports whether the reservoir holds enough water.
type WaterSensor interface {
	IsEnough(ctx context.Context) (bool, error)
}

// WaterPump runs the pump for a duration.
type WaterPump interface {
	Enable(ctx context.Context, d time.Duration) error
}

// Servo positions the servo horn.
type Servo interface {
	// TurnTo moves to angle degrees. Values outside [-90, 90] are clamped.
	TurnTo(angle float64) error
}

// Camera takes a still image.
type Camera interface {
	// Capture returns one JPEG frame.
	Capture(ctx context.Context) ([]byte, error)
}

// Devices is the set of drivers selected by configuration.
type Devices struct {
	WaterSensor WaterSensor
	WaterPump   WaterPump
	Servo       Servo
	Camera      Camera

	closers []func() error
}

// Close releases pins held by the drivers. Pins are left in their safe state.
func (d *Devices) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open initialises the drivers named by cfg.Driver.
//
// The returned water sensor coalesces concurrent readers so two requests
// never pulse the sensor at the same time.
func Open(cfg config.HardwareConfig, logger *logging.Logger) (*Devices, error) {
	log := logger.With("component", "hardware", "driver", cfg.Driver)

	var (
		devs *Devices
		err  error
	)
	switch cfg.Driver {
	case config.DriverPeriph:
		devs, err = openPeriph(cfg, log)
	case config.DriverSimulated:
		devs = openSimulated(cfg.Simulated, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	devs.WaterSensor = Coalesce(devs.WaterSensor)
	log.Info("hardware ready")
	return devs, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
