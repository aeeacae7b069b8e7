// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/supportstack/conversation-core/internal/middleware"
	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/orchestrator"
	"github.com/supportstack/conversation-core/pkg/logger"
)

// TurnHandler handles inbound turn submissions from channel adapters.
type TurnHandler struct {
	orch   *orchestrator.Orchestrator
	logger *logger.Logger
}

// NewTurnHandler creates a new turn handler.
func NewTurnHandler(orch *orchestrator.Orchestrator, log *logger.Logger) *TurnHandler {
	return &TurnHandler{
		orch:   orch,
		logger: log,
	}
}

// Handle handles POST /api/v1/turns
func (h *TurnHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageID(req.MessageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.orch.HandleTurn(ctx, &req)
	if err != nil {
		h.logger.Error("turn processing failed",
			zap.String("user_id", req.UserID),
			zap.String("channel", string(req.Channel)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to process turn")
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
