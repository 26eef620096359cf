package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/part-names", func(r chi.Router) {
			r.Get("/", s.handleListPartNames)
			r.Post("/", s.handleCreatePartName)
			r.Get("/{id}", s.handleGetPartName)
			r.Put("/{id}", s.handleUpdatePartName)
			r.Delete("/{id}", s.handleDeletePartName)
		})

		r.Route("/sensor-groups", func(r chi.Router) {
			r.Get("/", s.handleListSensorGroups)
			r.Post("/", s.handleCreateSensorGroup)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSensorGroup)
				r.Delete("/", s.handleDeleteSensorGroup)
				r.Post("/sensors", s.handleAttachSensors)
				r.Delete("/sensors/{sensorId}", s.handleDetachSensor)
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Get("/active", s.handleListActiveSessions)
			r.Get("/{id}", s.handleGetSession)
			r.Patch("/{id}", s.handleUpdateSession)
		})

		r.Get("/logs", s.handleListLogs)
		r.Get("/audit", s.handleListAuditLogs)
	})

	return r
}

// handleHealth reports database, ingestion and mirror status. It always
// answers 200 so the UI can render a degraded state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "ok"

	resp := map[string]any{
		"version":        s.version,
		"activeSessions": s.registry.ActiveCount(),
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			status = "degraded"
			resp["database"] = err.Error()
		} else {
			resp["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		resp["mqttConnected"] = s.mqtt.HealthCheck(ctx) == nil
	}
	if s.ingest != nil {
		stats := s.ingest.Stats()
		resp["ingest"] = stats
		if stats.State != "SUBSCRIBED" {
			status = "degraded"
		}
	}
	if s.writer != nil {
		resp["writer"] = s.writer.Stats()
	}

	resp["status"] = status
	writeJSON(w, http.StatusOK, resp)
}
