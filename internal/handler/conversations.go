package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fintastic-ai/research-chat/internal/chat"
	"github.com/fintastic-ai/research-chat/internal/conversation"
	"github.com/fintastic-ai/research-chat/internal/middleware"
	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/internal/session"
	"github.com/fintastic-ai/research-chat/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	sessions *session.Manager
	convs    *conversation.Store
	engine   *chat.Engine
	logger   *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(sessions *session.Manager, convs *conversation.Store, engine *chat.Engine, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		sessions: sessions,
		convs:    convs,
		engine:   engine,
		logger:   log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries := h.convs.List()
	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: summaries,
		Total:         len(summaries),
	})
}

// Create handles POST /api/v1/conversations, the "start new chat" action.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.sessions.Identity(); !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	conv := h.engine.StartConversation()
	if err := h.sessions.SetCurrent(conv.ID); err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// Get handles GET /api/v1/conversations/:id, the "load chat" action. The
// conversation becomes current and the view routes to chat.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.sessions.OpenChat(conversationID); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	conv, err := h.convs.Get(conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
