// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fintastic-ai/research-chat/internal/middleware"
	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/internal/session"
	"github.com/fintastic-ai/research-chat/pkg/logger"
)

// AuthHandler handles authentication and session endpoints.
type AuthHandler struct {
	sessions      *session.Manager
	jwtSecret     string
	jwtExpiration time.Duration
	logger        *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessions *session.Manager, jwtSecret string, jwtExpiration time.Duration, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:      sessions,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		logger:        log,
	}
}

// Authenticate handles POST /api/v1/auth
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req model.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Mode == "" {
		req.Mode = model.AuthModeLogin
	}
	if req.Mode != model.AuthModeLogin && req.Mode != model.AuthModeSignup {
		writeError(w, http.StatusBadRequest, "mode must be login or signup")
		return
	}
	if err := middleware.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateDisplayName(req.DisplayName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.sessions.Authenticate(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := middleware.IssueToken(h.jwtSecret, &id, h.jwtExpiration)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, &model.AuthResponse{
		Identity: id,
		Token:    token,
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Snapshot())
}

// GoHome handles POST /api/v1/session/home
func (h *AuthHandler) GoHome(w http.ResponseWriter, r *http.Request) {
	h.sessions.GoHome()
	w.WriteHeader(http.StatusNoContent)
}
