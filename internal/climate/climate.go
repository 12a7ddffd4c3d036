// Package climate holds the air conditioner settings and the latest
// temperature readings reported by the climate controller.
//
// State is in memory only and starts with two conditioners, both off,
// set to 20 degrees in Cool mode.
package climate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/rpihome-core/internal/guard"
)

// ErrUnknownMode is returned when decoding a mode name that does not exist.
var ErrUnknownMode = errors.New("climate: unknown conditioner mode")

// Mode is a conditioner operating mode.
type Mode int

// Conditioner modes.
const (
	ModeAuto Mode = 0
	ModeCool Mode = 1
	ModeDry  Mode = 2
	ModeFan  Mode = 3
	ModeHeat Mode = 4
)

var modeNames = map[Mode]string{
	ModeAuto: "Auto",
	ModeCool: "Cool",
	ModeDry:  "Dry",
	ModeFan:  "Fan",
	ModeHeat: "Heat",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode returns the mode with the given name.
func ParseMode(name string) (Mode, error) {
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// MarshalJSON encodes the mode as its name.
func (m Mode) MarshalJSON() ([]byte, error) {
	name, ok := modeNames[m]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a mode name.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseMode(name)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Conditioner is one air conditioner's desired state.
type Conditioner struct {
	Enabled     bool  `json:"enabled"`
	Temperature int32 `json:"temperature"`
	Mode        Mode  `json:"mode"`
}

// WeatherSensor is a reading from a wireless weather sensor.
type WeatherSensor struct {
	Channel     int32 `json:"channel"`
	Temperature int32 `json:"temperature"`
	Humidity    int32 `json:"humidity"`
	LowBattery  bool  `json:"low_battery"`
}

// Sensors is the latest set of readings.
type Sensors struct {
	WeatherSensors []WeatherSensor `json:"weather_sensors"`
	SensorTemp     float64         `json:"sensor_temp"`
	BedroomTemp    float64         `json:"bedroom_temp"`
	LivingTemp     float64         `json:"living_temp"`
}

// Slots is the number of conditioners.
const Slots = 2

// DefaultConditioner is the state of a conditioner at startup.
var DefaultConditioner = Conditioner{Enabled: false, Temperature: 20, Mode: ModeCool}

type state struct {
	conditioners [Slots]Conditioner
	sensors      Sensors
}

// Climate is the climate state. All methods are safe for concurrent use.
type Climate struct {
	state *guard.Mutex[state]
}

// New returns the startup climate state.
func New() *Climate {
	var s state
	for i := range s.conditioners {
		s.conditioners[i] = DefaultConditioner
	}
	s.sensors.WeatherSensors = []WeatherSensor{}
	return &Climate{state: guard.New(s)}
}

// Set overwrites conditioners by position. Entries past the last slot are
// ignored; slots without an entry keep their state.
func (c *Climate) Set(conditioners []Conditioner) error {
	return c.state.With(func(s *state) error {
		for i := range conditioners {
			if i >= len(s.conditioners) {
				break
			}
			s.conditioners[i] = conditioners[i]
		}
		return nil
	})
}

// Conditioners returns a copy of the conditioner states.
func (c *Climate) Conditioners() ([]Conditioner, error) {
	var out []Conditioner
	err := c.state.With(func(s *state) error {
		out = append([]Conditioner(nil), s.conditioners[:]...)
		return nil
	})
	return out, err
}

// Sensors returns a copy of the latest readings.
func (c *Climate) Sensors() (Sensors, error) {
	var out Sensors
	err := c.state.With(func(s *state) error {
		out = copySensors(s.sensors)
		return nil
	})
	return out, err
}

// Calculate stores readings and returns the conditioner states the
// controller should apply.
func (c *Climate) Calculate(readings Sensors) ([]Conditioner, error) {
	var out []Conditioner
	err := c.state.With(func(s *state) error {
		s.sensors = copySensors(readings)
		out = append([]Conditioner(nil), s.conditioners[:]...)
		return nil
	})
	return out, err
}

func copySensors(s Sensors) Sensors {
	ws := make([]WeatherSensor, len(s.WeatherSensors))
	copy(ws, s.WeatherSensors)
	s.WeatherSensors = ws
	return s
}
