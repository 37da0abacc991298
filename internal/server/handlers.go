package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"topicdesk/internal/core"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.db.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}

	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes an error envelope
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondErrorKind(w, status, "", message)
}

func (s *Server) respondErrorKind(w http.ResponseWriter, status int, kind core.ErrorKind, message string) {
	body := map[string]any{
		"status":  status,
		"message": message,
	}
	if kind != "" {
		body["kind"] = kind
	}
	s.respondJSON(w, status, map[string]any{"error": body})
}

// respondFailure maps a pipeline error onto its HTTP status
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, errUnauthenticated) {
		s.respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err, "kind", string(core.KindOf(err)))
	}

	message := err.Error()
	var pe *core.Error
	if errors.As(err, &pe) {
		message = pe.Message
		if pe.Kind == core.KindPersistence {
			message = "internal error"
		}
	}
	s.respondErrorKind(w, status, core.KindOf(err), message)
}

func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindPermission:
		return http.StatusForbidden
	case core.KindInsufficientInput, core.KindNoClusters:
		return http.StatusUnprocessableEntity
	case core.KindGeneration, core.KindGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.NewValidationError("invalid request body")
	}
	return nil
}
