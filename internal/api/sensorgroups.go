package api

import (
	"net/http"
	"strings"

	"github.com/nerrad567/furnace-core/internal/audit"
)

// SensorGroupRequest is the body for creating an empty sensor group.
type SensorGroupRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// AttachSensorsRequest lists entity ids to create or repoint into a group.
type AttachSensorsRequest struct {
	EntityIDs []string `json:"entityIds"`
}

func (s *Server) handleListSensorGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.List(r.Context(), queryBool(r, "includeSensors"))
	if err != nil {
		s.writeStoreError(w, err, "failed to list sensor groups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensorGroups": groups, "count": len(groups)})
}

func (s *Server) handleGetSensorGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	g, err := s.groups.GetByID(r.Context(), id, true)
	if err != nil {
		s.writeStoreError(w, err, "failed to get sensor group")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleCreateSensorGroup(w http.ResponseWriter, r *http.Request) {
	var req SensorGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Version = strings.TrimSpace(req.Version)
	if req.Name == "" || req.Version == "" {
		writeBadRequest(w, "name and version are required")
		return
	}

	g, err := s.groups.Create(r.Context(), req.Name, req.Version)
	if err != nil {
		s.writeStoreError(w, err, "failed to create sensor group")
		return
	}
	s.auditLog(audit.ActionCreate, audit.EntitySensorGroup, g.ID, map[string]any{"name": g.Name, "version": g.Version})
	writeJSON(w, http.StatusCreated, g)
}

// handleDeleteSensorGroup refuses with 400 while the group has sensors or parts.
func (s *Server) handleDeleteSensorGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.groups.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, err, "failed to delete sensor group")
		return
	}
	s.auditLog(audit.ActionDelete, audit.EntitySensorGroup, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttachSensors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req AttachSensorsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	entityIDs := make([]string, 0, len(req.EntityIDs))
	for _, e := range req.EntityIDs {
		if e = strings.TrimSpace(e); e != "" {
			entityIDs = append(entityIDs, e)
		}
	}
	if len(entityIDs) == 0 {
		writeBadRequest(w, "entityIds must contain at least one entity id")
		return
	}

	sensors, err := s.groups.AttachSensors(r.Context(), id, entityIDs)
	if err != nil {
		s.writeStoreError(w, err, "failed to attach sensors")
		return
	}
	s.auditLog(audit.ActionAttach, audit.EntitySensorGroup, id, map[string]any{"entityIds": entityIDs})
	writeJSON(w, http.StatusOK, map[string]any{"sensors": sensors, "count": len(sensors)})
}

func (s *Server) handleDetachSensor(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	sensorID, err := pathID(r, "sensorId")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.groups.DetachSensor(r.Context(), groupID, sensorID); err != nil {
		s.writeStoreError(w, err, "failed to detach sensor")
		return
	}
	s.auditLog(audit.ActionDetach, audit.EntitySensorGroup, groupID, map[string]any{"sensorId": sensorID})
	w.WriteHeader(http.StatusNoContent)
}
