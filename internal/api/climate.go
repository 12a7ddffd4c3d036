package api

import (
	"context"
	"strconv"

	"github.com/nerrad567/rpihome-core/internal/climate"
	"github.com/nerrad567/rpihome-core/internal/dispatch"
	"github.com/nerrad567/rpihome-core/internal/events"
)

const resultSuccess = "Success"

type conditionersInput struct {
	requiredKey
	Sensors     []climate.WeatherSensor `json:"sensors"`
	SensorTemp  float64                 `json:"sensor_temp"`
	BedroomTemp float64                 `json:"bedroom_temp"`
	LivingTemp  float64                 `json:"living_temp"`
}

type conditionersOutput struct {
	Conditioners []climate.Conditioner `json:"conditioners"`
}

// handleConditioners stores the controller's readings and answers with
// the conditioner states it should apply.
func (s *Server) handleConditioners(ctx context.Context, _ *dispatch.Request, in conditionersInput) (conditionersOutput, error) {
	readings := climate.Sensors{
		WeatherSensors: in.Sensors,
		SensorTemp:     in.SensorTemp,
		BedroomTemp:    in.BedroomTemp,
		LivingTemp:     in.LivingTemp,
	}
	if readings.WeatherSensors == nil {
		readings.WeatherSensors = []climate.WeatherSensor{}
	}

	conditioners, err := s.climate.Calculate(readings)
	if err != nil {
		return conditionersOutput{}, err
	}

	s.events.Emit(ctx, events.Event{
		Type:   events.TypeSensors,
		Entity: "climate",
		Source: eventSource,
		Details: map[string]any{
			"sensor_temp":  in.SensorTemp,
			"bedroom_temp": in.BedroomTemp,
			"living_temp":  in.LivingTemp,
		},
	})
	return conditionersOutput{Conditioners: conditioners}, nil
}

type climateOutput struct {
	Conditioners []climate.Conditioner `json:"conditioners"`
	Sensors      climate.Sensors       `json:"sensors"`
}

func (s *Server) handleGetClimate(_ context.Context, _ *dispatch.Request, _ keyOnlyInput) (climateOutput, error) {
	conditioners, err := s.climate.Conditioners()
	if err != nil {
		return climateOutput{}, err
	}
	sensors, err := s.climate.Sensors()
	if err != nil {
		return climateOutput{}, err
	}
	return climateOutput{Conditioners: conditioners, Sensors: sensors}, nil
}

type setClimateInput struct {
	requiredKey
	Conditioners []climate.Conditioner `json:"conditioners"`
}

func (s *Server) handleSetClimate(ctx context.Context, _ *dispatch.Request, in setClimateInput) (statusOutput, error) {
	if err := s.climate.Set(in.Conditioners); err != nil {
		return statusOutput{}, err
	}

	details := make(map[string]any, 3*climate.Slots)
	for i, c := range in.Conditioners {
		if i >= climate.Slots {
			break
		}
		prefix := "conditioner" + strconv.Itoa(i) + "_"
		details[prefix+"enabled"] = c.Enabled
		details[prefix+"temperature"] = c.Temperature
		details[prefix+"mode"] = c.Mode.String()
	}
	s.events.Emit(ctx, events.Event{
		Type:    events.TypeClimate,
		Entity:  "conditioners",
		Source:  eventSource,
		Details: details,
	})
	return statusOutput{Result: resultSuccess}, nil
}
