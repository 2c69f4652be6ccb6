package handler

import (
	"net/http"

	"github.com/fintastic-ai/research-chat/internal/events"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	publisher      *events.Publisher
	eventsRequired bool
}

// NewHealthHandler creates a new health handler. eventsRequired marks the
// NATS connection as part of readiness; when events are disabled the
// service is ready without a broker.
func NewHealthHandler(publisher *events.Publisher, eventsRequired bool) *HealthHandler {
	return &HealthHandler{
		publisher:      publisher,
		eventsRequired: eventsRequired,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.eventsRequired && !h.publisher.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
