package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/nerrad567/rpihome-core/internal/dispatch"
	"github.com/nerrad567/rpihome-core/internal/events"
)

// Water messages.
const (
	msgNotEnoughWater = "Not enough water"
	msgPlantWatered   = "Plant was watered"
)

const resultOk = "Ok"

type cameraImageOutput struct {
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) handleGetCameraImage(ctx context.Context, _ *dispatch.Request, _ keyOnlyInput) (cameraImageOutput, error) {
	img, err := s.devices.Camera.Capture(ctx)
	if err != nil {
		return cameraImageOutput{}, err
	}
	return cameraImageOutput{ImageBase64: base64.StdEncoding.EncodeToString(img)}, nil
}

func (s *Server) handleIsEnoughWater(ctx context.Context, _ *dispatch.Request, _ keyOnlyInput) (resultOutput, error) {
	enough, err := s.devices.WaterSensor.IsEnough(ctx)
	if err != nil {
		return resultOutput{}, err
	}
	return resultOutput{Result: enough}, nil
}

type waterInput struct {
	requiredKey
	DurationSeconds uint32 `json:"duration_seconds"`
	Force           bool   `json:"force"`
}

type waterOutput struct {
	Result  bool   `json:"result"`
	Message string `json:"message"`
}

// handleWater runs the pump unless the reservoir is low and force is off.
func (s *Server) handleWater(ctx context.Context, _ *dispatch.Request, in waterInput) (waterOutput, error) {
	enough, err := s.devices.WaterSensor.IsEnough(ctx)
	if err != nil {
		return waterOutput{}, err
	}
	if !enough && !in.Force {
		return waterOutput{Result: false, Message: msgNotEnoughWater}, nil
	}

	d := time.Duration(in.DurationSeconds) * time.Second
	if err := s.devices.WaterPump.Enable(ctx, d); err != nil {
		return waterOutput{}, fmt.Errorf("running pump: %w", err)
	}

	s.events.Emit(ctx, events.Event{
		Type:   events.TypeWater,
		Entity: "pump",
		Source: eventSource,
		Details: map[string]any{
			"duration_seconds": in.DurationSeconds,
			"forced":           in.Force,
			"water_enough":     enough,
		},
	})
	return waterOutput{Result: true, Message: msgPlantWatered}, nil
}

type turnServoInput struct {
	optionalKey
	Angle float64 `json:"angle"`
}

func (s *Server) handleTurnServo(ctx context.Context, _ *dispatch.Request, in turnServoInput) (statusOutput, error) {
	if err := s.devices.Servo.TurnTo(in.Angle); err != nil {
		return statusOutput{}, err
	}
	s.events.Emit(ctx, events.Event{
		Type:    events.TypeServo,
		Entity:  "servo",
		Source:  eventSource,
		Details: map[string]any{"angle": in.Angle},
	})
	return statusOutput{Result: resultOk}, nil
}
