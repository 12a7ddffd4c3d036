package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/rpihome-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/rpihome-core/internal/journal"
)

// Publisher is the MQTT surface the MQTT sink needs.
type Publisher interface {
	PublishEvent(topic string, payload []byte) error
	PublishRetained(topic string, payload []byte) error
}

// MQTTSink publishes every event as JSON under the event topic and keeps
// retained state topics for switches and the climate controller.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTSink returns a sink publishing through pub under topics.
func NewMQTTSink(pub Publisher, topics mqtt.Topics) *MQTTSink {
	return &MQTTSink{pub: pub, topics: topics}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Record implements Sink.
func (s *MQTTSink) Record(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	entity := topicSegment(e.Entity)
	if err := s.pub.PublishEvent(s.topics.Event(topicSegment(e.Type), entity), payload); err != nil {
		return err
	}

	switch e.Type {
	case TypeSwitch:
		return s.pub.PublishRetained(s.topics.SwitchState(entity), payload)
	case TypeClimate:
		return s.pub.PublishRetained(s.topics.ClimateState(), payload)
	}
	return nil
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// topicSegment makes a user-supplied name safe as one topic level.
func topicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return topicReplacer.Replace(s)
}

// PointWriter is the InfluxDB surface the metrics sink needs.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// TemperatureWriter is implemented by writers with a dedicated
// temperature measurement.
type TemperatureWriter interface {
	WriteTemperature(location string, celsius float64, timestamp time.Time)
}

// InfluxSink writes the numeric and boolean details of an event as one
// point of measurement e.Type tagged with the entity, stamped with the
// event time. Sensor events go
// to the temperature measurement when the writer supports it, one point
// per "<location>_temp" detail.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink returns a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Record implements Sink. Events with no numeric or boolean detail are
// skipped.
func (s *InfluxSink) Record(_ context.Context, e Event) error {
	if tw, ok := s.w.(TemperatureWriter); ok && e.Type == TypeSensors {
		for k, v := range e.Details {
			location, found := strings.CutSuffix(k, "_temp")
			celsius, isFloat := v.(float64)
			if found && isFloat {
				tw.WriteTemperature(location, celsius, e.Time)
			}
		}
		return nil
	}

	fields := pointFields(e.Details)
	if len(fields) == 0 {
		return nil
	}
	s.w.WritePointWithTime(e.Type, map[string]string{"entity": e.Entity}, fields, e.Time)
	return nil
}

func pointFields(details map[string]any) map[string]any {
	fields := make(map[string]any, len(details))
	for k, v := range details {
		switch v := v.(type) {
		case bool, float64, float32, int64, uint64:
			fields[k] = v
		case int:
			fields[k] = int64(v)
		case int32:
			fields[k] = int64(v)
		case uint16:
			fields[k] = int64(v)
		case uint32:
			fields[k] = int64(v)
		}
	}
	return fields
}

// JournalSink appends every event to the journal.
type JournalSink struct {
	repo journal.Repository
}

// NewJournalSink returns a sink writing to repo.
func NewJournalSink(repo journal.Repository) *JournalSink {
	return &JournalSink{repo: repo}
}

// Name implements Sink.
func (s *JournalSink) Name() string { return "journal" }

// Record implements Sink.
func (s *JournalSink) Record(ctx context.Context, e Event) error {
	return s.repo.Create(ctx, &journal.Entry{
		Action:    e.Type,
		Entity:    e.Entity,
		Source:    e.Source,
		Details:   e.Details,
		CreatedAt: e.Time,
	})
}
