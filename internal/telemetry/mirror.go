package telemetry

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nerrad567/furnace-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/furnace-core/internal/infrastructure/mqtt"
)

// Mirror receives every successfully stored event.
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, ev Event) error
}

// MQTTPublisher is the part of *mqtt.Client the MQTT mirror uses.
type MQTTPublisher interface {
	Topics() mqtt.Topics
	PublishJSON(topic string, v any) error
}

// MQTTMirror publishes each event as JSON on {prefix}/telemetry/{session}/{entity}.
type MQTTMirror struct {
	client MQTTPublisher
}

// NewMQTTMirror creates a mirror over client.
func NewMQTTMirror(client MQTTPublisher) *MQTTMirror {
	return &MQTTMirror{client: client}
}

// Name implements Mirror.
func (m *MQTTMirror) Name() string { return "mqtt" }

// Mirror implements Mirror.
func (m *MQTTMirror) Mirror(_ context.Context, ev Event) error {
	topic := m.client.Topics().Telemetry(ev.SessionID, ev.EntityID)
	if err := m.client.PublishJSON(topic, ev); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// PointWriter is the part of *influxdb.Client the InfluxDB mirror uses.
type PointWriter interface {
	WriteReading(r influxdb.Reading)
}

// InfluxMirror writes each event as a furnace_telemetry point.
type InfluxMirror struct {
	client PointWriter
}

// NewInfluxMirror creates a mirror over client.
func NewInfluxMirror(client PointWriter) *InfluxMirror {
	return &InfluxMirror{client: client}
}

// Name implements Mirror.
func (m *InfluxMirror) Name() string { return "influxdb" }

// Mirror implements Mirror. Write errors surface through the client's
// async error callback; only a non-numeric value is reported here.
func (m *InfluxMirror) Mirror(_ context.Context, ev Event) error {
	v, err := strconv.ParseFloat(ev.Value, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrNonNumericValue, ev.Value)
	}
	m.client.WriteReading(influxdb.Reading{
		SessionID:  ev.SessionID,
		PartID:     ev.PartID,
		GroupName:  ev.GroupName,
		EntityID:   ev.EntityID,
		Value:      v,
		CapturedAt: ev.CapturedAt,
	})
	return nil
}
