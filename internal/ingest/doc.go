// Package ingest consumes the Home Assistant websocket event stream.
//
// A Client opens one connection to the hub, authenticates with a
// long-lived access token, subscribes to state_changed events and turns
// every numeric reading of a routed sensor into a telemetry.Event:
//
//	DISCONNECTED → CONNECTING → AUTH_PENDING → SUBSCRIBED
//	                                  ↓
//	                                ERROR (auth_invalid, terminal)
//
//	any state → CLOSED on transport error, hub close or context cancel
//
// Events are handled one at a time in arrival order. A reading is dropped
// silently when its value is missing, is one of the hub's "no data"
// sentinels (unavailable, unknown, none), is not a finite number, or
// belongs to an entity no active session routes. Nothing about a single
// event is fatal.
//
// There is no reconnection. Run returns when the connection ends and the
// process supervisor is expected to restart the service, which restores
// active sessions from the database before ingesting again.
package ingest
