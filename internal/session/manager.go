// Package session owns authentication state and the home/chat view routing
// for the single active session.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fintastic-ai/research-chat/internal/conversation"
	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/internal/store"
	"github.com/fintastic-ai/research-chat/pkg/logger"
	"github.com/fintastic-ai/research-chat/pkg/metrics"
)

// ErrNotAuthenticated is returned by operations that require an identity.
var ErrNotAuthenticated = errors.New("not authenticated")

// Verifier checks submitted credentials. The production deployment has no
// real verification backend yet; Fabricated stands in so a real service can
// be substituted without touching the conversation or chat core.
type Verifier interface {
	Verify(ctx context.Context, email, password string) error
}

// Fabricated accepts any credentials. Documented stub boundary.
type Fabricated struct{}

// Verify always succeeds.
func (Fabricated) Verify(ctx context.Context, email, password string) error {
	return nil
}

// Manager orchestrates login, signup, logout, and session restore, and owns
// the current view.
type Manager struct {
	local    *store.Local
	convs    *conversation.Store
	verifier Verifier
	logger   *logger.Logger

	mu   sync.RWMutex
	sess model.Session
}

// NewManager creates a manager in the unauthenticated home state.
func NewManager(local *store.Local, convs *conversation.Store, verifier Verifier, log *logger.Logger) *Manager {
	return &Manager{
		local:    local,
		convs:    convs,
		verifier: verifier,
		logger:   log,
		sess:     model.Session{View: model.ViewHome},
	}
}

// Authenticate performs a login or signup. On signup the display name
// defaults to the local part of the email when absent; on login it is
// always derived from the email. The identity is persisted as the current
// identity and its conversation history is loaded.
func (m *Manager) Authenticate(ctx context.Context, req *model.AuthRequest) (model.Identity, error) {
	if err := m.verifier.Verify(ctx, req.Email, req.Password); err != nil {
		return model.Identity{}, err
	}

	name := localPart(req.Email)
	if req.Mode == model.AuthModeSignup && strings.TrimSpace(req.DisplayName) != "" {
		name = strings.TrimSpace(req.DisplayName)
	}

	id := model.Identity{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName: name,
		CreatedAt:   time.Now(),
	}

	if err := m.local.SaveIdentity(&id); err != nil {
		// Persistence is best-effort; the in-memory session still opens.
		m.logger.Warn("failed to persist identity", zap.Error(err))
	}

	m.convs.Load(id.Email)

	m.mu.Lock()
	m.sess = model.Session{
		Authenticated: true,
		Identity:      &id,
		View:          model.ViewChat,
	}
	m.mu.Unlock()

	metrics.AuthTotal.WithLabelValues(string(req.Mode)).Inc()
	metrics.SessionsActive.Set(1)

	m.logger.Info("session opened",
		zap.String("email", id.Email),
		zap.String("mode", string(req.Mode)))

	return id, nil
}

// Restore re-hydrates a previously persisted identity at startup. When no
// identity record exists (or it is malformed) the session stays
// unauthenticated on the home view.
func (m *Manager) Restore() (model.Identity, bool) {
	id, ok := m.local.LoadIdentity()
	if !ok {
		return model.Identity{}, false
	}

	m.convs.Load(id.Email)

	m.mu.Lock()
	m.sess = model.Session{
		Authenticated: true,
		Identity:      id,
		View:          model.ViewHome,
	}
	m.mu.Unlock()

	metrics.SessionsActive.Set(1)
	m.logger.Info("session restored", zap.String("email", id.Email))
	return *id, true
}

// Logout clears the persisted identity record and all in-memory session
// state, and forces the home view.
func (m *Manager) Logout() {
	if err := m.local.ClearIdentity(); err != nil {
		m.logger.Warn("failed to clear identity record", zap.Error(err))
	}
	m.convs.Clear()

	m.mu.Lock()
	email := ""
	if m.sess.Identity != nil {
		email = m.sess.Identity.Email
	}
	m.sess = model.Session{View: model.ViewHome}
	m.mu.Unlock()

	metrics.SessionsActive.Set(0)
	m.logger.Info("session closed", zap.String("email", email))
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.sess
	if m.sess.Identity != nil {
		id := *m.sess.Identity
		out.Identity = &id
	}
	return out
}

// Identity returns the current identity, if any.
func (m *Manager) Identity() (model.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.sess.Authenticated || m.sess.Identity == nil {
		return model.Identity{}, false
	}
	return *m.sess.Identity, true
}

// CurrentConversationID returns the active conversation id, or empty.
func (m *Manager) CurrentConversationID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.CurrentConversationID
}

// View returns the current presentation state.
func (m *Manager) View() model.View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.View
}

// OpenChat makes an existing conversation current and routes to the chat
// view. The conversation must belong to the current identity's set.
func (m *Manager) OpenChat(conversationID string) error {
	m.mu.RLock()
	authed := m.sess.Authenticated
	m.mu.RUnlock()
	if !authed {
		return ErrNotAuthenticated
	}

	if _, err := m.convs.Get(conversationID); err != nil {
		return err
	}

	m.mu.Lock()
	m.sess.CurrentConversationID = conversationID
	m.sess.View = model.ViewChat
	m.mu.Unlock()
	return nil
}

// SetCurrent records a freshly minted conversation as current and routes to
// the chat view.
func (m *Manager) SetCurrent(conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sess.Authenticated {
		return ErrNotAuthenticated
	}
	m.sess.CurrentConversationID = conversationID
	m.sess.View = model.ViewChat
	return nil
}

// GoHome routes back to the home view without touching authentication.
func (m *Manager) GoHome() {
	m.mu.Lock()
	m.sess.View = model.ViewHome
	m.mu.Unlock()
}

func localPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
