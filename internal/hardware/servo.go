package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Servo geometry for a standard 50 Hz hobby servo.
const (
	servoMinAngle  = -90.0
	servoMaxAngle  = 90.0
	dutyStart      = 0.03
	dutySpan       = 0.1
	dutyNeutral    = 0.08
	servoAngleSpan = servoMaxAngle - servoMinAngle
)

// DutyCycle returns the PWM duty fraction for angle degrees.
// The angle is clamped to [-90, 90].
func DutyCycle(angle float64) float64 {
	if angle < servoMinAngle {
		angle = servoMinAngle
	}
	if angle > servoMaxAngle {
		angle = servoMaxAngle
	}
	return dutyStart + (angle-servoMinAngle)*dutySpan/servoAngleSpan
}

// PeriphServo drives a servo from a hardware PWM pin.
type PeriphServo struct {
	pin  gpio.PinIO
	freq physic.Frequency
}

// NewPeriphServo configures pin at freqHz and centres the servo.
func NewPeriphServo(pin gpio.PinIO, freqHz int) (*PeriphServo, error) {
	s := &PeriphServo{
		pin:  pin,
		freq: physic.Frequency(freqHz) * physic.Hertz,
	}
	if err := s.setDuty(dutyNeutral); err != nil {
		return nil, err
	}
	return s, nil
}

// TurnTo moves the servo to angle.
func (s *PeriphServo) TurnTo(angle float64) error {
	return s.setDuty(DutyCycle(angle))
}

func (s *PeriphServo) setDuty(fraction float64) error {
	duty := gpio.Duty(fraction * float64(gpio.DutyMax))
	if err := s.pin.PWM(duty, s.freq); err != nil {
		return fmt.Errorf("%w: %s duty %v: %v", ErrPWM, s.pin.Name(), duty, err)
	}
	return nil
}

// Halt stops the PWM output.
func (s *PeriphServo) Halt() error {
	if err := s.pin.Halt(); err != nil {
		return fmt.Errorf("%w: halting %s: %v", ErrPWM, s.pin.Name(), err)
	}
	return nil
}
