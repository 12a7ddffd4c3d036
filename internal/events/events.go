// Package events fans state changes out to the optional MQTT, InfluxDB
// and journal sinks. Sink failures are logged and never reach the caller.
package events

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Event types emitted by the API.
const (
	TypeSwitch  = "switch"
	TypeClimate = "climate"
	TypeWater   = "water"
	TypeServo   = "servo"
	TypeSensors = "sensors"
)

// sinkTimeout bounds one Record call.
const sinkTimeout = 5 * time.Second

// Event is one state change.
type Event struct {
	Type    string         `json:"type"`
	Entity  string         `json:"entity"`
	Source  string         `json:"source,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Time    time.Time      `json:"time"`
}

// Sink receives every emitted event.
type Sink interface {
	Name() string
	Record(ctx context.Context, e Event) error
}

// Logger is the logging surface the bus needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Bus delivers events to its sinks. A nil *Bus drops everything, so
// callers never need to check whether any sink is configured.
type Bus struct {
	sinks  []Sink
	logger Logger
}

// NewBus returns a bus over sinks. Nil sinks are skipped.
func NewBus(sinks ...Sink) *Bus {
	b := &Bus{logger: noopLogger{}}
	for _, s := range sinks {
		if s != nil {
			b.sinks = append(b.sinks, s)
		}
	}
	return b
}

// SetLogger sets where sink failures are reported.
func (b *Bus) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	b.logger = l
}

// Sinks returns the names of the attached sinks.
func (b *Bus) Sinks() []string {
	if b == nil {
		return nil
	}
	names := make([]string, len(b.sinks))
	for i, s := range b.sinks {
		names[i] = s.Name()
	}
	return names
}

// Emit records e on every sink concurrently and waits for them. The
// request context's cancellation is not inherited so a client hanging
// up does not lose the record.
func (b *Bus) Emit(ctx context.Context, e Event) {
	if b == nil || len(b.sinks) == 0 {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	var g errgroup.Group
	for _, s := range b.sinks {
		s := s
		g.Go(func() error {
			if err := s.Record(ctx, e); err != nil {
				b.logger.Warn("event sink failed",
					"sink", s.Name(), "type", e.Type, "entity", e.Entity, "error", err)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // sinks never return errors to the group
}
