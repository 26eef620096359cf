package api

import (
	"net/http"

	"github.com/nerrad567/furnace-core/internal/telemetry"
)

// handleListLogs returns telemetry for one session in ascending time order.
//
// Query parameters: sessionId (required), partId, sensorId, from, to.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	sessionID, err := queryID(r, "sessionId")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if sessionID == nil {
		writeBadRequest(w, "sessionId is required")
		return
	}

	q := telemetry.Query{SessionID: *sessionID}
	if q.PartID, err = queryID(r, "partId"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if q.SensorID, err = queryID(r, "sensorId"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if q.From, err = queryTime(r, "from"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if q.To, err = queryTime(r, "to"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	events, err := s.logs.Query(r.Context(), q)
	if err != nil {
		s.writeStoreError(w, err, "failed to query logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": events, "count": len(events)})
}
