// Package api provides the HTTP REST API for Furnace.
//
// It exposes the reference data (part names, sensor groups), session
// lifecycle and telemetry log queries to the operator UI, plus a health
// endpoint reporting ingestion state.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Session lifecycle changes made through PATCH /api/sessions/{id} are
// mirrored into the active session registry: moving a session to IN
// PROGRESS starts routing its sensors, STOPPED or COMPLETED stops it.
//
// Errors are returned as {"status", "code", "message"} JSON bodies.
package api
