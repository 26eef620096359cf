package ingest

import "encoding/json"

// Hub message types.
const (
	TypeAuthRequired    = "auth_required"
	TypeAuth            = "auth"
	TypeAuthOK          = "auth_ok"
	TypeAuthInvalid     = "auth_invalid"
	TypeSubscribeEvents = "subscribe_events"
	TypeResult          = "result"
	TypeEvent           = "event"
)

// EventStateChanged is the only event category that carries readings.
const EventStateChanged = "state_changed"

// subscriptionID is the message id of the single subscribe_events request.
const subscriptionID = 1

// inbound is any server→client frame. Fields not used by a type stay zero.
type inbound struct {
	Type    string    `json:"type"`
	ID      int       `json:"id,omitempty"`
	Success *bool     `json:"success,omitempty"`
	Message string    `json:"message,omitempty"`
	Event   *hubEvent `json:"event,omitempty"`
	Error   *hubError `json:"error,omitempty"`
	Version string    `json:"ha_version,omitempty"`
}

type hubError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type hubEvent struct {
	EventType string           `json:"event_type"`
	Data      stateChangedData `json:"data"`
}

type stateChangedData struct {
	EntityID string       `json:"entity_id"`
	NewState *entityState `json:"new_state"`
}

// entityState keeps State raw: the hub sends strings, but numbers and
// null have been seen from custom integrations.
type entityState struct {
	State json.RawMessage `json:"state"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type subscribeMessage struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}
