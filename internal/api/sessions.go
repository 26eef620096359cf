package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/furnace-core/internal/audit"
	"github.com/nerrad567/furnace-core/internal/session"
)

// CreateSessionRequest is the body for POST /api/sessions.
type CreateSessionRequest struct {
	Tag   *string             `json:"tag"`
	Parts []session.PartInput `json:"parts"`
}

// UpdateSessionRequest is the body for PATCH /api/sessions/{id}.
// Absent fields are left unchanged.
type UpdateSessionRequest struct {
	Tag       *string `json:"tag"`
	StateID   *int    `json:"stateId"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(req.Parts) == 0 {
		writeBadRequest(w, "parts must contain at least one entry")
		return
	}
	for i, p := range req.Parts {
		if p.PartNameID <= 0 || p.SensorGroupID <= 0 {
			writeBadRequest(w, fmt.Sprintf("parts[%d]: partNameId and sensorGroupId must be positive integers", i))
			return
		}
	}

	tag := "session_" + strconv.FormatInt(s.now().UnixMilli(), 10)
	if req.Tag != nil {
		tag = *req.Tag
	}

	sess, err := s.sessions.Create(r.Context(), tag, req.Parts)
	if err != nil {
		s.writeStoreError(w, err, "failed to create session")
		return
	}
	s.auditLog(audit.ActionCreate, audit.EntitySession, sess.ID, map[string]any{
		"tag":   sess.Tag,
		"parts": len(req.Parts),
	})
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	opts := session.ListOptions{IncludeParts: queryBool(r, "includeParts")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		opts.Limit = limit
	}

	sessions, err := s.sessions.List(r.Context(), opts)
	if err != nil {
		s.writeStoreError(w, err, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

// handleListActiveSessions returns the registry's view, including routing tables.
func (s *Server) handleListActiveSessions(w http.ResponseWriter, _ *http.Request) {
	active := s.registry.GetAllActiveSessions()
	writeJSON(w, http.StatusOK, map[string]any{"sessions": active, "count": len(active)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sess, err := s.sessions.Get(r.Context(), id, true)
	if err != nil {
		s.writeStoreError(w, err, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleUpdateSession applies a partial update, then activates the
// session in the registry on IN PROGRESS or deactivates it on STOPPED
// and COMPLETED.
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req UpdateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	u := session.Update{Tag: req.Tag}
	if req.StateID != nil {
		st := session.State(*req.StateID)
		if !st.Valid() {
			writeBadRequest(w, fmt.Sprintf("invalid stateId %d", *req.StateID))
			return
		}
		u.State = &st
	}
	if req.StartTime != nil {
		t, err := parseTime(*req.StartTime)
		if err != nil {
			writeBadRequest(w, "invalid startTime")
			return
		}
		u.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := parseTime(*req.EndTime)
		if err != nil {
			writeBadRequest(w, "invalid endTime")
			return
		}
		u.EndTime = &t
	}

	// The store write and the registry change share the session's lock so
	// concurrent PATCHes cannot leave routing out of step with the store.
	sess, err := s.registry.Transition(r.Context(), id, func(ctx context.Context) (*session.Session, error) {
		return s.sessions.Update(ctx, id, u)
	})
	if sess == nil {
		s.writeStoreError(w, err, "failed to update session")
		return
	}
	s.auditLog(audit.ActionUpdate, audit.EntitySession, id, updateDetails(req))
	if err != nil {
		s.logger.Error("session updated but not activated", "session_id", id, "error", err)
		writeInternalError(w, "session updated but routing could not be activated")
		return
	}

	if u.State != nil {
		switch {
		case u.State.Active():
			s.auditLog(audit.ActionActivate, audit.EntitySession, id, nil)
		case u.State.Ended():
			s.auditLog(audit.ActionDeactivate, audit.EntitySession, id, map[string]any{"stateId": *req.StateID})
		}
	}

	writeJSON(w, http.StatusOK, sess)
}

// updateDetails lists the fields a PATCH request set.
func updateDetails(req UpdateSessionRequest) map[string]any {
	d := map[string]any{}
	if req.Tag != nil {
		d["tag"] = *req.Tag
	}
	if req.StateID != nil {
		d["stateId"] = *req.StateID
	}
	if req.StartTime != nil {
		d["startTime"] = *req.StartTime
	}
	if req.EndTime != nil {
		d["endTime"] = *req.EndTime
	}
	return d
}
