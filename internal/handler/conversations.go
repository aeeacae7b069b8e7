package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/orchestrator"
	"github.com/supportstack/conversation-core/internal/store"
	"github.com/supportstack/conversation-core/pkg/logger"
)

// ConversationHandler handles conversation inspection and operator actions.
type ConversationHandler struct {
	orch   *orchestrator.Orchestrator
	logger *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(orch *orchestrator.Orchestrator, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		orch:   orch,
		logger: log,
	}
}

func conversationKey(r *http.Request) model.ConversationKey {
	return model.ConversationKey{
		Channel: model.Channel(chi.URLParam(r, "channel")),
		UserID:  chi.URLParam(r, "userID"),
	}
}

// Get handles GET /api/v1/conversations/{channel}/{userID}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := conversationKey(r)

	summary, err := h.orch.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to get conversation", zap.String("key", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Resolve handles POST /api/v1/conversations/{channel}/{userID}/resolve
// A human agent marks the hand-off finished and returns the conversation
// to automated handling.
func (h *ConversationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	key := conversationKey(r)

	summary, err := h.orch.Resolve(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to resolve conversation", zap.String("key", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve conversation")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Close handles POST /api/v1/conversations/{channel}/{userID}/close
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	key := conversationKey(r)

	if err := h.orch.Close(r.Context(), key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to close conversation", zap.String("key", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to close conversation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
