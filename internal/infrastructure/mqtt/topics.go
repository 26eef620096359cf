package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "furnace"

// Topics builds Furnace MQTT topics under a common prefix.
//
//	topics := mqtt.NewTopics("furnace")
//	topics.Telemetry(12, "sensor.zone1_temp")
//	// "furnace/telemetry/12/sensor.zone1_temp"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix, trimming surrounding slashes.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Telemetry returns the topic for one reading.
//
// MQTT wildcards and separators in entityID are replaced with '_'.
func (t Topics) Telemetry(sessionID int64, entityID string) string {
	return fmt.Sprintf("%s/telemetry/%d/%s", t.Prefix(), sessionID, sanitizeLevel(entityID))
}

// AllTelemetry matches every telemetry topic.
func (t Topics) AllTelemetry() string {
	return t.Prefix() + "/telemetry/#"
}

// SessionTelemetry matches every reading of one session.
func (t Topics) SessionTelemetry(sessionID int64) string {
	return fmt.Sprintf("%s/telemetry/%d/+", t.Prefix(), sessionID)
}

// SystemStatus is the retained online/offline topic.
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

func sanitizeLevel(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, s)
}
