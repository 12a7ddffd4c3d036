package hardware

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/nerrad567/rpihome-core/internal/infrastructure/config"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/logging"
)

func openSimulated(cfg config.SimulatedConfig, log *logging.Logger) *Devices {
	return &Devices{
		WaterSensor: &SimulatedWaterSensor{Enough: cfg.WaterEnough},
		WaterPump:   &SimulatedWaterPump{log: log},
		Servo:       &SimulatedServo{log: log},
		Camera:      &SimulatedCamera{},
	}
}

// SimulatedWaterSensor returns a fixed level.
type SimulatedWaterSensor struct {
	mu     sync.Mutex
	Enough bool
	Err    error
	reads  int
}

// IsEnough returns Enough, or Err when set.
func (s *SimulatedWaterSensor) IsEnough(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.Enough, s.Err
}

// Reads returns how many times the sensor was read.
func (s *SimulatedWaterSensor) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// SimulatedWaterPump records runs without waiting.
type SimulatedWaterPump struct {
	mu   sync.Mutex
	runs []time.Duration
	Err  error
	log  *logging.Logger
}

// Enable records d.
func (p *SimulatedWaterPump) Enable(_ context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.runs = append(p.runs, d)
	if p.log != nil {
		p.log.Info("simulated pump run", "duration", d)
	}
	return nil
}

// Runs returns the recorded run durations.
func (p *SimulatedWaterPump) Runs() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.runs...)
}

// SimulatedServo records the last duty cycle.
type SimulatedServo struct {
	mu    sync.Mutex
	angle float64
	duty  float64
	Err   error
	log   *logging.Logger
}

// TurnTo records the clamped duty cycle for angle.
func (s *SimulatedServo) TurnTo(angle float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.angle = angle
	s.duty = DutyCycle(angle)
	if s.log != nil {
		s.log.Debug("simulated servo turn", "angle", angle, "duty", s.duty)
	}
	return nil
}

// Duty returns the last duty cycle set.
func (s *SimulatedServo) Duty() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duty
}

// SimulatedCamera returns a generated test card.
type SimulatedCamera struct {
	// Err, when set, is returned instead of an image.
	Err error
}

// Capture encodes a small gradient as JPEG.
func (c *SimulatedCamera) Capture(ctx context.Context) ([]byte, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
