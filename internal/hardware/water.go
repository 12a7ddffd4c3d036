package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
	"periph.io/x/conn/v3/gpio"
)

// PeriphWaterSensor powers a resistive level probe, samples its digital
// output, then powers it down again.
type PeriphWaterSensor struct {
	power     gpio.PinIO
	input     gpio.PinIO
	settle    time.Duration
	interval  time.Duration
	samples   int
	threshold float64

	mu sync.Mutex
}

// WaterSensorTiming configures the probe pulse.
type WaterSensorTiming struct {
	Settle    time.Duration
	Interval  time.Duration
	Samples   int
	Threshold float64
}

// NewPeriphWaterSensor drives power low and configures input as a pulled-down input.
func NewPeriphWaterSensor(power, input gpio.PinIO, timing WaterSensorTiming) (*PeriphWaterSensor, error) {
	if err := power.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("%w: %s low: %v", ErrGPIO, power.Name(), err)
	}
	if err := input.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("%w: %s input: %v", ErrGPIO, input.Name(), err)
	}
	if timing.Samples < 1 {
		timing.Samples = 1
	}
	return &PeriphWaterSensor{
		power:     power,
		input:     input,
		settle:    timing.Settle,
		interval:  timing.Interval,
		samples:   timing.Samples,
		threshold: timing.Threshold,
	}, nil
}

// IsEnough pulses the probe and reports whether the mean of the samples
// reaches the threshold. The probe is always powered down before returning.
func (s *PeriphWaterSensor) IsEnough(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.power.Out(gpio.High); err != nil {
		return false, fmt.Errorf("%w: %s high: %v", ErrGPIO, s.power.Name(), err)
	}
	defer func() { _ = s.power.Out(gpio.Low) }()

	if err := sleepContext(ctx, s.settle); err != nil {
		return false, err
	}

	readings := make([]float64, 0, s.samples)
	for i := 0; i < s.samples; i++ {
		if i > 0 {
			if err := sleepContext(ctx, s.interval); err != nil {
				return false, err
			}
		}
		if s.input.Read() == gpio.High {
			readings = append(readings, 1)
		} else {
			readings = append(readings, 0)
		}
	}

	if err := s.power.Out(gpio.Low); err != nil {
		return false, fmt.Errorf("%w: %s low: %v", ErrGPIO, s.power.Name(), err)
	}

	return enoughWater(readings, s.threshold), nil
}

// enoughWater reports whether the mean reading reaches threshold.
func enoughWater(readings []float64, threshold float64) bool {
	if len(readings) == 0 {
		return false
	}
	return stat.Mean(readings, nil) >= threshold
}

// PeriphWaterPump switches the pump through a relay on one GPIO pin.
type PeriphWaterPump struct {
	power       gpio.PinIO
	maxDuration time.Duration

	mu sync.Mutex
}

// NewPeriphWaterPump drives the relay pin low. Runs longer than
// maxDuration are shortened.
func NewPeriphWaterPump(power gpio.PinIO, maxDuration time.Duration) (*PeriphWaterPump, error) {
	if err := power.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("%w: %s low: %v", ErrGPIO, power.Name(), err)
	}
	return &PeriphWaterPump{power: power, maxDuration: maxDuration}, nil
}

// Enable runs the pump for d. One run at a time; a second caller waits.
// A started run always completes: cancelling ctx does not cut it short.
func (p *PeriphWaterPump) Enable(ctx context.Context, d time.Duration) error {
	d = clampDuration(d, p.maxDuration)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.power.Out(gpio.High); err != nil {
		_ = p.power.Out(gpio.Low)
		return fmt.Errorf("%w: %s high: %v", ErrGPIO, p.power.Name(), err)
	}

	waitErr := sleepContext(context.WithoutCancel(ctx), d)

	if err := p.power.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: %s low: %v", ErrGPIO, p.power.Name(), err)
	}
	return waitErr
}

// Off drives the relay low.
func (p *PeriphWaterPump) Off() error {
	if err := p.power.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: %s low: %v", ErrGPIO, p.power.Name(), err)
	}
	return nil
}

func clampDuration(d, limit time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
