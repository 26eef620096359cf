package api

import (
	"net/http"
	"strings"

	"github.com/nerrad567/furnace-core/internal/audit"
)

// PartNameRequest is the body for creating or replacing a part name.
type PartNameRequest struct {
	Name string  `json:"name"`
	OEM  *string `json:"oem"`
}

func (s *Server) handleListPartNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.partNames.ListPartNames(r.Context())
	if err != nil {
		s.writeStoreError(w, err, "failed to list part names")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partNames": names, "count": len(names)})
}

func (s *Server) handleGetPartName(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	pn, err := s.partNames.GetPartName(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "failed to get part name")
		return
	}
	writeJSON(w, http.StatusOK, pn)
}

func (s *Server) handleCreatePartName(w http.ResponseWriter, r *http.Request) {
	var req PartNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeBadRequest(w, "name is required")
		return
	}

	pn, err := s.partNames.CreatePartName(r.Context(), req.Name, req.OEM)
	if err != nil {
		s.writeStoreError(w, err, "failed to create part name")
		return
	}
	s.auditLog(audit.ActionCreate, audit.EntityPartName, pn.ID, map[string]any{"name": pn.Name})
	writeJSON(w, http.StatusCreated, pn)
}

func (s *Server) handleUpdatePartName(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req PartNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeBadRequest(w, "name is required")
		return
	}

	pn, err := s.partNames.UpdatePartName(r.Context(), id, req.Name, req.OEM)
	if err != nil {
		s.writeStoreError(w, err, "failed to update part name")
		return
	}
	s.auditLog(audit.ActionUpdate, audit.EntityPartName, pn.ID, map[string]any{"name": pn.Name})
	writeJSON(w, http.StatusOK, pn)
}

// handleDeletePartName refuses with 400 while parts still reference the name.
func (s *Server) handleDeletePartName(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.partNames.DeletePartName(r.Context(), id); err != nil {
		s.writeStoreError(w, err, "failed to delete part name")
		return
	}
	s.auditLog(audit.ActionDelete, audit.EntityPartName, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
