package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fintastic-ai/research-chat/internal/chat"
	"github.com/fintastic-ai/research-chat/internal/conversation"
	"github.com/fintastic-ai/research-chat/internal/middleware"
	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/internal/session"
	"github.com/fintastic-ai/research-chat/pkg/logger"
)

// AskHandler handles the question submission path.
type AskHandler struct {
	sessions *session.Manager
	convs    *conversation.Store
	engine   *chat.Engine
	logger   *logger.Logger
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(sessions *session.Manager, convs *conversation.Store, engine *chat.Engine, log *logger.Logger) *AskHandler {
	return &AskHandler{
		sessions: sessions,
		convs:    convs,
		engine:   engine,
		logger:   log,
	}
}

// Ask handles POST /api/v1/ask and POST /api/v1/conversations/:id/ask.
// Without an id a new conversation is minted and made current.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if conversationID != "" {
		if err := middleware.ValidateConversationID(conversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var req model.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateQuestion(req.Question); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.engine.Submit(r.Context(), conversationID, middleware.GetEmail(r.Context()), req.Question)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question cannot be empty")
		return
	case errors.Is(err, chat.ErrConversationBusy):
		writeError(w, http.StatusConflict, "conversation is awaiting a response")
		return
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	default:
		h.logger.Error("ask failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process question")
		return
	}

	if conversationID == "" {
		if err := h.sessions.SetCurrent(resp.ConversationID); err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
			h.logger.Warn("failed to set current conversation", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Suggestions handles GET /api/v1/suggestions. Suggested questions are only
// offered while the active conversation holds nothing beyond the greeting.
func (h *AskHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions := chat.SuggestedQuestions

	if id := h.sessions.CurrentConversationID(); id != "" {
		conv, err := h.convs.Get(id)
		if err == nil {
			for _, msg := range conv.Messages {
				if msg.Role == model.RoleUser {
					suggestions = []string{}
					break
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}
