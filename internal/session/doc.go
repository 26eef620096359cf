// Package session manages monitoring sessions and the in-memory routing
// index used by telemetry ingestion.
//
// A session binds one or more parts to sensor groups. While a session is
// IN PROGRESS its sensors are routable: the Registry maps each hub entity id
// to the session, part and sensor that should receive the reading.
//
// The Registry is created once in main and passed to the ingestion client
// and the REST handlers. Activation loads the session through a Loader,
// builds the routing table and installs it under a write lock, so a lookup
// sees either the previous table or the complete new one. Add and remove for
// the same session id are serialised by a per-id mutex.
//
// If one entity id is routed by two active sessions, GetSensorInfo returns
// the entry from the session activated first.
package session
