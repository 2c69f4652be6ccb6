package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintastic-ai/research-chat/internal/answer"
	"github.com/fintastic-ai/research-chat/internal/chat"
	"github.com/fintastic-ai/research-chat/internal/conversation"
	"github.com/fintastic-ai/research-chat/internal/middleware"
	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/internal/session"
	"github.com/fintastic-ai/research-chat/internal/store"
	"github.com/fintastic-ai/research-chat/pkg/logger"
)

const testSecret = "test-secret"

type scriptedClient struct {
	text string
	err  error
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Ask(ctx context.Context, question string) (*answer.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &answer.Response{Text: c.text}, nil
}

type testAPI struct {
	router   chi.Router
	sessions *session.Manager
	convs    *conversation.Store
}

func newTestAPI(t *testing.T, client answer.Client) *testAPI {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)

	local, err := store.Open(filepath.Join(t.TempDir(), "store.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	convs := conversation.NewStore(local, log)
	sessions := session.NewManager(local, convs, session.Fabricated{}, log)
	engine := chat.NewEngine(convs, client, nil, log)

	authHandler := NewAuthHandler(sessions, testSecret, time.Hour, log)
	conversationHandler := NewConversationHandler(sessions, convs, engine, log)
	askHandler := NewAskHandler(sessions, convs, engine, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth", authHandler.Authenticate)
		r.Get("/session", authHandler.Session)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(testSecret))

			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/session/home", authHandler.GoHome)
			r.Get("/suggestions", askHandler.Suggestions)
			r.Post("/ask", askHandler.Ask)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", conversationHandler.Create)
				r.Get("/", conversationHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", conversationHandler.Get)
					r.Post("/ask", askHandler.Ask)
				})
			})
		})
	})

	return &testAPI{router: r, sessions: sessions, convs: convs}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(t *testing.T) (model.Identity, string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/auth", "", model.AuthRequest{
		Email:    "alice@example.com",
		Password: "pw",
		Mode:     model.AuthModeLogin,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Identity, resp.Token
}

func TestAuthenticateIssuesToken(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "ok"})

	id, token := api.login(t)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, "alice", id.DisplayName)
	assert.NotEmpty(t, token)
}

func TestAuthenticateRejectsBadEmail(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "ok"})

	rec := api.do(t, http.MethodPost, "/api/v1/auth", "", model.AuthRequest{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "ok"})

	rec := api.do(t, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAskMintsConversation(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "Revenue grew 6%."})
	_, token := api.login(t)

	rec := api.do(t, http.MethodPost, "/api/v1/ask", token, model.AskRequest{Question: "What are Apple's recent financial highlights?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "What are Apple's recent financial highlights?", resp.UserMessage.Content)
	assert.Equal(t, "Revenue grew 6%.", resp.AssistantReply.Content)

	assert.Equal(t, resp.ConversationID, api.sessions.CurrentConversationID())
}

func TestAskBlankQuestionRejected(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "ok"})
	_, token := api.login(t)

	rec := api.do(t, http.MethodPost, "/api/v1/ask", token, model.AskRequest{Question: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, api.convs.Len())
}

func TestAskUnknownConversation(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "ok"})
	_, token := api.login(t)

	rec := api.do(t, http.MethodPost, "/api/v1/conversations/0190f0a0-0000-7000-8000-000000000001/ask", token, model.AskRequest{Question: "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAskFailurePathStillPersistsBothMessages(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{err: errors.New("connection refused")})
	_, token := api.login(t)

	rec := api.do(t, http.MethodPost, "/api/v1/ask", token, model.AskRequest{Question: "Compare Tesla vs Ford"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chat.ConnectivityReply, resp.AssistantReply.Content)

	conv, err := api.convs.Get(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "Compare Tesla vs Ford", conv.Messages[1].Content)
}

func TestConversationLifecycle(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "answer"})
	_, token := api.login(t)

	// Start a new chat.
	rec := api.do(t, http.MethodPost, "/api/v1/conversations", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, conversation.DefaultTitle, conv.Title)

	// It shows up in the list and can be loaded.
	rec = api.do(t, http.MethodGet, "/api/v1/conversations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)

	rec = api.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, conv.ID, api.sessions.CurrentConversationID())
}

func TestSuggestionsOnlyBeforeFirstUserMessage(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "answer"})
	_, token := api.login(t)

	rec := api.do(t, http.MethodPost, "/api/v1/conversations", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))

	var payload map[string][]string
	rec = api.do(t, http.MethodGet, "/api/v1/suggestions", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload["suggestions"], 4)

	rec = api.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/ask", token, model.AskRequest{Question: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/suggestions", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Empty(t, payload["suggestions"])
}

func TestLogoutClearsSessionState(t *testing.T) {
	api := newTestAPI(t, &scriptedClient{text: "answer"})
	_, token := api.login(t)

	rec := api.do(t, http.MethodPost, "/api/v1/ask", token, model.AskRequest{Question: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.False(t, sess.Authenticated)
	assert.Equal(t, model.ViewHome, sess.View)
	assert.Equal(t, 0, api.convs.Len())
}
