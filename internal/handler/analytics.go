package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/supportstack/conversation-core/internal/store"
	"github.com/supportstack/conversation-core/pkg/logger"
)

// AnalyticsHandler serves aggregate conversation metrics for dashboards.
type AnalyticsHandler struct {
	sessions store.SessionStore
	logger   *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(sessions store.SessionStore, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		sessions: sessions,
		logger:   log,
	}
}

// Summary handles GET /api/v1/analytics/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sessions.Summary(r.Context())
	if err != nil {
		h.logger.Error("failed to build analytics summary", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build analytics summary")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
