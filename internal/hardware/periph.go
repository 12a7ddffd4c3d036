package hardware

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/nerrad567/rpihome-core/internal/infrastructure/config"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/logging"
)

// openPeriph initialises the host drivers and claims every configured pin.
func openPeriph(cfg config.HardwareConfig, log *logging.Logger) (*Devices, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: initialising host drivers: %v", ErrGPIO, err)
	}

	devs := &Devices{}

	sensorPower, err := pinByName(cfg.WaterSensor.PowerPin)
	if err != nil {
		return nil, err
	}
	sensorInput, err := pinByName(cfg.WaterSensor.InputPin)
	if err != nil {
		return nil, err
	}
	sensor, err := NewPeriphWaterSensor(sensorPower, sensorInput, WaterSensorTiming{
		Settle:    time.Duration(cfg.WaterSensor.SettleMS) * time.Millisecond,
		Interval:  time.Duration(cfg.WaterSensor.SampleIntervalMS) * time.Millisecond,
		Samples:   cfg.WaterSensor.Samples,
		Threshold: cfg.WaterSensor.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("water sensor: %w", err)
	}
	devs.WaterSensor = sensor

	pumpPin, err := pinByName(cfg.WaterPump.PowerPin)
	if err != nil {
		return nil, err
	}
	pump, err := NewPeriphWaterPump(pumpPin, time.Duration(cfg.WaterPump.MaxDurationSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("water pump: %w", err)
	}
	devs.WaterPump = pump
	devs.closers = append(devs.closers, pump.Off)

	servoPin, err := pinByName(cfg.Servo.Pin)
	if err != nil {
		return nil, err
	}
	servo, err := NewPeriphServo(servoPin, cfg.Servo.FrequencyHz)
	if err != nil {
		_ = devs.Close()
		return nil, fmt.Errorf("servo: %w", err)
	}
	devs.Servo = servo
	devs.closers = append(devs.closers, servo.Halt)

	camera, err := NewCommandCamera(
		cfg.Camera.Command,
		cfg.Camera.Args,
		time.Duration(cfg.Camera.WarmupMS)*time.Millisecond,
		time.Duration(cfg.Camera.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		_ = devs.Close()
		return nil, fmt.Errorf("camera: %w", err)
	}
	devs.Camera = camera

	log.Info("gpio pins claimed",
		"water_sensor_power", sensorPower.Name(),
		"water_sensor_input", sensorInput.Name(),
		"water_pump", pumpPin.Name(),
		"servo", servoPin.Name(),
		"camera", camera.path,
	)
	return devs, nil
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: pin %q not found", ErrGPIO, name)
	}
	return p, nil
}
