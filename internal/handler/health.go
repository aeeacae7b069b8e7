package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/supportstack/conversation-core/internal/events"
	"github.com/supportstack/conversation-core/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	sessions store.SessionStore
	events   *events.Client
}

// NewHealthHandler creates a new health handler. The events client may be
// nil when event publishing is disabled.
func NewHealthHandler(sessions store.SessionStore, eventsClient *events.Client) *HealthHandler {
	return &HealthHandler{
		sessions: sessions,
		events:   eventsClient,
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
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.sessions.Summary(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "session store unavailable",
		})
		return
	}

	if h.events != nil && !h.events.IsConnected() {
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
