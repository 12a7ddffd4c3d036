package hardware

import "errors"

// Domain errors for the hardware package.
var (
	// ErrGPIO is returned when a digital pin cannot be opened, driven or read.
	ErrGPIO = errors.New("hardware: gpio failure")

	// ErrPWM is returned when the servo PWM output cannot be configured.
	ErrPWM = errors.New("hardware: pwm failure")

	// ErrCamera is returned when a still capture fails.
	ErrCamera = errors.New("hardware: camera failure")

	// ErrCameraNotFound is returned when no camera is attached.
	ErrCameraNotFound = errors.New("hardware: camera not found")

	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("hardware: unknown driver")
)
