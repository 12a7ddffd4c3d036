package hardware

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	"github.com/nerrad567/rpihome-core/internal/infrastructure/config"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/logging"
)

func TestDutyCycle(t *testing.T) {
	tests := []struct {
		angle float64
		want  float64
	}{
		{-90, 0.03},
		{0, 0.08},
		{90, 0.13},
		{45, 0.105},
		{-200, 0.03},
		{200, 0.13},
	}
	for _, tt := range tests {
		if got := DutyCycle(tt.angle); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DutyCycle(%v) = %v, want %v", tt.angle, got, tt.want)
		}
	}
}

func TestEnoughWater(t *testing.T) {
	tests := []struct {
		name      string
		readings  []float64
		threshold float64
		want      bool
	}{
		{"all high", []float64{1, 1, 1}, 0.5, true},
		{"all low", []float64{0, 0, 0}, 0.5, false},
		{"majority high", []float64{1, 1, 0}, 0.5, true},
		{"exactly threshold", []float64{1, 0}, 0.5, true},
		{"minority high", []float64{1, 0, 0}, 0.5, false},
		{"no readings", nil, 0.5, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := enoughWater(tt.readings, tt.threshold); got != tt.want {
				t.Errorf("enoughWater() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampDuration(t *testing.T) {
	if got := clampDuration(2*time.Minute, time.Minute); got != time.Minute {
		t.Errorf("clampDuration over limit = %v, want 1m", got)
	}
	if got := clampDuration(5*time.Second, time.Minute); got != 5*time.Second {
		t.Errorf("clampDuration under limit = %v, want 5s", got)
	}
	if got := clampDuration(-time.Second, time.Minute); got != 0 {
		t.Errorf("clampDuration negative = %v, want 0", got)
	}
}

func TestCaptureArgs(t *testing.T) {
	got := captureArgs([]string{"--nopreview", "--output", "-"}, 2*time.Second)
	want := []string{"--nopreview", "--output", "-", "--timeout", "2000"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("captureArgs() mismatch (-want +got):\n%s", diff)
	}

	explicit := []string{"-t", "500", "-o", "-"}
	if diff := cmp.Diff(explicit, captureArgs(explicit, 2*time.Second)); diff != "" {
		t.Errorf("captureArgs() overrode explicit timeout (-want +got):\n%s", diff)
	}
}

func TestNoCamera(t *testing.T) {
	if !noCamera("ERROR: *** no cameras available ***\n") {
		t.Error("noCamera() = false for libcamera message")
	}
	if noCamera("some other failure") {
		t.Error("noCamera() = true for unrelated output")
	}
}

func TestPeriphWaterSensor(t *testing.T) {
	power := &gpiotest.Pin{N: "GPIO17", Num: 17}
	input := &gpiotest.Pin{N: "GPIO27", Num: 27}

	s, err := NewPeriphWaterSensor(power, input, WaterSensorTiming{Samples: 3, Threshold: 0.5})
	if err != nil {
		t.Fatalf("NewPeriphWaterSensor() error = %v", err)
	}

	input.L = gpio.High
	enough, err := s.IsEnough(context.Background())
	if err != nil {
		t.Fatalf("IsEnough() error = %v", err)
	}
	if !enough {
		t.Error("IsEnough() = false with input high")
	}
	if power.L != gpio.Low {
		t.Error("power pin left high after reading")
	}

	input.L = gpio.Low
	enough, err = s.IsEnough(context.Background())
	if err != nil {
		t.Fatalf("IsEnough() error = %v", err)
	}
	if enough {
		t.Error("IsEnough() = true with input low")
	}
}

func TestPeriphWaterSensor_Cancelled(t *testing.T) {
	power := &gpiotest.Pin{N: "GPIO17"}
	input := &gpiotest.Pin{N: "GPIO27"}
	s, err := NewPeriphWaterSensor(power, input, WaterSensorTiming{Settle: time.Hour, Samples: 1, Threshold: 0.5})
	if err != nil {
		t.Fatalf("NewPeriphWaterSensor() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.IsEnough(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("IsEnough() error = %v, want context.Canceled", err)
	}
	if power.L != gpio.Low {
		t.Error("power pin left high after cancellation")
	}
}

func TestPeriphWaterPump(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO5"}
	p, err := NewPeriphWaterPump(pin, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewPeriphWaterPump() error = %v", err)
	}

	start := time.Now()
	if err := p.Enable(context.Background(), time.Hour); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Enable() ran %v, want capped near 10ms", elapsed)
	}
	if pin.L != gpio.Low {
		t.Error("pump left running")
	}
}

func TestPeriphWaterPump_RunsThroughCancellation(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO5"}
	const run = 30 * time.Millisecond
	p, err := NewPeriphWaterPump(pin, time.Second)
	if err != nil {
		t.Fatalf("NewPeriphWaterPump() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := p.Enable(ctx, run); err != nil {
		t.Fatalf("Enable() error = %v, want nil for a cancelled context", err)
	}
	if elapsed := time.Since(start); elapsed < run {
		t.Errorf("Enable() returned after %v, want the full %v run", elapsed, run)
	}
	if pin.L != gpio.Low {
		t.Error("pump left running")
	}
}

func TestPeriphServo(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO18"}
	s, err := NewPeriphServo(pin, 50)
	if err != nil {
		t.Fatalf("NewPeriphServo() error = %v", err)
	}
	if pin.F != 50*physic.Hertz {
		t.Errorf("frequency = %v, want 50Hz", pin.F)
	}
	neutral := dutyNeutral
	if want := gpio.Duty(neutral * float64(gpio.DutyMax)); pin.D != want {
		t.Errorf("initial duty = %v, want %v", pin.D, want)
	}

	if err := s.TurnTo(90); err != nil {
		t.Fatalf("TurnTo() error = %v", err)
	}
	turned := 0.13
	if want := gpio.Duty(turned * float64(gpio.DutyMax)); pin.D != want {
		t.Errorf("duty = %v, want %v", pin.D, want)
	}
}

// countingSensor blocks until released and counts physical reads.
type countingSensor struct {
	reads   atomic.Int32
	release chan struct{}
}

func (s *countingSensor) IsEnough(context.Context) (bool, error) {
	s.reads.Add(1)
	<-s.release
	return true, nil
}

func TestCoalesce_SharesReading(t *testing.T) {
	inner := &countingSensor{release: make(chan struct{})}
	sensor := Coalesce(inner)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = sensor.IsEnough(context.Background())
		}()
	}

	// Let every caller join the in-flight reading before releasing it.
	deadline := time.Now().Add(time.Second)
	for inner.reads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	if got := inner.reads.Load(); got != 1 {
		t.Errorf("physical reads = %d, want 1", got)
	}
	for i, r := range results {
		if !r {
			t.Errorf("caller %d got false", i)
		}
	}
}

func TestCoalesce_Idempotent(t *testing.T) {
	s := Coalesce(&SimulatedWaterSensor{})
	if Coalesce(s) != s {
		t.Error("Coalesce() wrapped an already coalesced sensor")
	}
}

func TestSimulatedCamera(t *testing.T) {
	img, err := (&SimulatedCamera{}).Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(img)); err != nil {
		t.Errorf("Capture() did not return a JPEG: %v", err)
	}
}

func TestOpen_Simulated(t *testing.T) {
	devs, err := Open(config.HardwareConfig{
		Driver:    config.DriverSimulated,
		Simulated: config.SimulatedConfig{WaterEnough: true},
	}, logging.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer devs.Close()

	enough, err := devs.WaterSensor.IsEnough(context.Background())
	if err != nil || !enough {
		t.Errorf("IsEnough() = %v, %v; want true, nil", enough, err)
	}
	if err := devs.Servo.TurnTo(10); err != nil {
		t.Errorf("TurnTo() error = %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.HardwareConfig{Driver: "arduino"}, logging.Discard())
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Open() error = %v, want ErrUnknownDriver", err)
	}
}
