package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
	"github.com/nerrad567/furnace-core/internal/sensorgroup"
	"github.com/nerrad567/furnace-core/internal/session"
	"github.com/nerrad567/furnace-core/internal/telemetry"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

var (
	notFoundErrors = []error{
		sensorgroup.ErrGroupNotFound,
		sensorgroup.ErrSensorNotFound,
		session.ErrSessionNotFound,
		session.ErrPartNameNotFound,
	}
	conflictErrors = []error{
		sensorgroup.ErrGroupExists,
		session.ErrSessionExists,
		session.ErrPartNameExists,
	}
	badRequestErrors = []error{
		sensorgroup.ErrGroupInUse,
		sensorgroup.ErrInvalidGroup,
		sensorgroup.ErrNoSensors,
		session.ErrInvalidTag,
		session.ErrNoParts,
		session.ErrInvalidReference,
		session.ErrInvalidState,
		session.ErrPartNameInUse,
		session.ErrInvalidPartName,
		telemetry.ErrInvalidQuery,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeStoreError maps a repository error to a response. Domain
// sentinels win over store error kinds; anything unrecognised is logged
// and reported as a 500 with fallback as the message.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case isAny(err, notFoundErrors):
		writeNotFound(w, err.Error())
	case isAny(err, conflictErrors):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case isAny(err, badRequestErrors):
		writeBadRequest(w, err.Error())
	case database.IsKind(err, database.KindNotFound):
		writeNotFound(w, err.Error())
	case database.IsKind(err, database.KindConflict):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case database.IsKind(err, database.KindInvalidReference):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error(fallback, "error", err, "kind", database.KindOf(err).String())
		writeInternalError(w, fallback)
	}
}
