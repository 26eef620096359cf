package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// TelemetryMeasurement is the measurement every reading is written to.
const TelemetryMeasurement = "furnace_telemetry"

// Reading is one attributed sensor value.
type Reading struct {
	SessionID  int64
	PartID     int64
	GroupName  string
	EntityID   string
	Value      float64
	CapturedAt time.Time
}

// WriteReading queues a reading as a point tagged by session, part, group
// and entity. It is dropped silently when the client is closed.
func (c *Client) WriteReading(r Reading) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(r))
}

func readingPoint(r Reading) *write.Point {
	ts := r.CapturedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		TelemetryMeasurement,
		map[string]string{
			"session_id": strconv.FormatInt(r.SessionID, 10),
			"part_id":    strconv.FormatInt(r.PartID, 10),
			"group":      r.GroupName,
			"entity_id":  r.EntityID,
		},
		map[string]interface{}{
			"value": r.Value,
		},
		ts,
	)
}
