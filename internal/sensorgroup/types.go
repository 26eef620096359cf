package sensorgroup

import "time"

// Definition is one parsed group: a name and its sensor ids in source order.
// Duplicates are kept.
type Definition struct {
	Name    string
	Sensors []string
}

// Group is a persisted sensor group. (Name, Version) is unique.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`

	// Sensors is populated only when requested.
	Sensors []Sensor `json:"sensors,omitempty"`
}

// Sensor is a persisted hub entity. EntityID is globally unique and the
// sensor belongs to at most one group at a time.
type Sensor struct {
	ID        int64     `json:"id"`
	EntityID  string    `json:"entityId"`
	GroupID   *int64    `json:"groupId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SyncResult summarises one Synchronizer run.
type SyncResult struct {
	Synced  int
	Skipped int
}
