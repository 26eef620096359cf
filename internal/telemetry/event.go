package telemetry

import "time"

// Event is one reading attributed to a session part.
type Event struct {
	ID         int64     `json:"id,omitempty"`
	SessionID  int64     `json:"sessionId"`
	PartID     int64     `json:"partId"`
	SensorID   int64     `json:"sensorId"`
	EntityID   string    `json:"sensorEntityId"`
	GroupName  string    `json:"groupName"`
	Value      string    `json:"value"`
	CapturedAt time.Time `json:"timestamp"`
}

// Query filters stored events. SessionID is required.
type Query struct {
	SessionID int64
	PartID    *int64
	SensorID  *int64
	From      *time.Time
	To        *time.Time
	Limit     int
}

// DefaultQueryLimit caps a log query when Query.Limit is unset.
const DefaultQueryLimit = 10000

// WriterStats counts what the writer has done since it started.
type WriterStats struct {
	Written      uint64 `json:"written"`
	Failed       uint64 `json:"failed"`
	MirrorFailed uint64 `json:"mirrorFailed"`
	Queued       int    `json:"queued"`
}
