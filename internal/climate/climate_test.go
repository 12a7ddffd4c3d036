package climate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew_Defaults(t *testing.T) {
	c := New()

	got, err := c.Conditioners()
	if err != nil {
		t.Fatalf("Conditioners() error = %v", err)
	}
	want := []Conditioner{
		{Enabled: false, Temperature: 20, Mode: ModeCool},
		{Enabled: false, Temperature: 20, Mode: ModeCool},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Conditioners() mismatch (-want +got):\n%s", diff)
	}
}

func TestClimate_SetPositional(t *testing.T) {
	tests := []struct {
		name  string
		input []Conditioner
		want  []Conditioner
	}{
		{
			name:  "empty leaves state",
			input: nil,
			want:  []Conditioner{DefaultConditioner, DefaultConditioner},
		},
		{
			name:  "one entry updates first slot only",
			input: []Conditioner{{Enabled: true, Temperature: 24, Mode: ModeHeat}},
			want: []Conditioner{
				{Enabled: true, Temperature: 24, Mode: ModeHeat},
				DefaultConditioner,
			},
		},
		{
			name: "extra entries ignored",
			input: []Conditioner{
				{Enabled: true, Temperature: 18, Mode: ModeDry},
				{Enabled: true, Temperature: 19, Mode: ModeFan},
				{Enabled: true, Temperature: 30, Mode: ModeAuto},
			},
			want: []Conditioner{
				{Enabled: true, Temperature: 18, Mode: ModeDry},
				{Enabled: true, Temperature: 19, Mode: ModeFan},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			if err := c.Set(tt.input); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, _ := c.Conditioners()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Conditioners() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClimate_Calculate(t *testing.T) {
	c := New()
	readings := Sensors{
		WeatherSensors: []WeatherSensor{{Channel: 1, Temperature: 21, Humidity: 40}},
		SensorTemp:     22.5,
		BedroomTemp:    21,
		LivingTemp:     23.25,
	}

	conds, err := c.Calculate(readings)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if len(conds) != Slots {
		t.Errorf("len(Calculate()) = %d, want %d", len(conds), Slots)
	}

	got, _ := c.Sensors()
	if diff := cmp.Diff(readings, got); diff != "" {
		t.Errorf("Sensors() mismatch (-want +got):\n%s", diff)
	}

	readings.WeatherSensors[0].Temperature = 99
	again, _ := c.Sensors()
	if again.WeatherSensors[0].Temperature != 21 {
		t.Error("stored readings alias the caller's slice")
	}
}

func TestMode_JSON(t *testing.T) {
	b, err := json.Marshal(Conditioner{Enabled: true, Temperature: 22, Mode: ModeHeat})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"enabled":true,"temperature":22,"mode":"Heat"}` {
		t.Errorf("Marshal() = %s", b)
	}

	var c Conditioner
	if err := json.Unmarshal([]byte(`{"enabled":false,"temperature":18,"mode":"Dry"}`), &c); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if c.Mode != ModeDry {
		t.Errorf("Mode = %v, want Dry", c.Mode)
	}

	err = json.Unmarshal([]byte(`{"mode":"Turbo"}`), &c)
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Unmarshal(Turbo) error = %v, want ErrUnknownMode", err)
	}
	if err := json.Unmarshal([]byte(`{"mode":3}`), &c); err == nil {
		t.Error("Unmarshal(numeric mode) error = nil, want error")
	}
}

func TestModeValues(t *testing.T) {
	want := map[Mode]int{ModeAuto: 0, ModeCool: 1, ModeDry: 2, ModeFan: 3, ModeHeat: 4}
	for m, v := range want {
		if int(m) != v {
			t.Errorf("%v = %d, want %d", m, int(m), v)
		}
	}
}
