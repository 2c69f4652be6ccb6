// Package chat drives the active conversation: it accepts a question,
// appends the user message, asks the external answering service, and
// appends exactly one assistant message per accepted submission.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fintastic-ai/research-chat/internal/answer"
	"github.com/fintastic-ai/research-chat/internal/conversation"
	"github.com/fintastic-ai/research-chat/internal/events"
	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/pkg/logger"
	"github.com/fintastic-ai/research-chat/pkg/metrics"
)

// Greeting seeds every new conversation.
const Greeting = "👋 Hello! I'm FinTastic, your AI-powered financial research assistant. " +
	"I can help you analyze company performance, compare financials, and provide " +
	"insights on market trends. What would you like to know?"

// Fixed assistant copy for the three failure shapes of a turn.
const (
	// MissingAnswerReply is substituted when the service responds
	// successfully but carries no answer text.
	MissingAnswerReply = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

	// ConnectivityReply is appended when the request itself fails.
	ConnectivityReply = "I'm experiencing some technical difficulties. Please check your connection and try again."

	// FailureReply is appended when the service answers with an error status.
	FailureReply = "I'm experiencing some technical difficulties. Please try again in a moment."
)

// SuggestedQuestions are the shortcuts offered while a conversation has no
// user messages yet.
var SuggestedQuestions = []string{
	"What are Apple's recent financial highlights?",
	"Compare Tesla vs Ford's performance",
	"Show me Microsoft's revenue trends",
	"What's Amazon's debt-to-equity ratio?",
}

var (
	// ErrEmptyQuestion rejects blank submissions.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrConversationBusy rejects a submission while a question is already
	// outstanding for the conversation.
	ErrConversationBusy = errors.New("conversation is awaiting a response")
)

// Engine is the chat interaction engine. One question may be in flight per
// conversation at a time; a turn always resolves with exactly one assistant
// message regardless of outcome.
type Engine struct {
	convs  *conversation.Store
	client answer.Client
	pub    *events.Publisher
	logger *logger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewEngine creates an engine bound to a conversation store and an
// answering provider. pub may be nil.
func NewEngine(convs *conversation.Store, client answer.Client, pub *events.Publisher, log *logger.Logger) *Engine {
	return &Engine{
		convs:    convs,
		client:   client,
		pub:      pub,
		logger:   log,
		inflight: make(map[string]struct{}),
	}
}

// StartConversation mints a new conversation seeded with the assistant
// greeting and stores it.
func (e *Engine) StartConversation() model.Conversation {
	now := time.Now()
	conv := model.Conversation{
		ID:    uuid.Must(uuid.NewV7()).String(),
		Title: conversation.DefaultTitle,
		Messages: []model.Message{{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Role:      model.RoleAssistant,
			Content:   Greeting,
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.convs.Upsert(conv)
	metrics.ConversationsTotal.Inc()
	return conv
}

// Busy reports whether a question is outstanding for the conversation.
func (e *Engine) Busy(conversationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[conversationID]
	return ok
}

// Submit runs one turn: append the user message, ask the answering service,
// append the resulting assistant message (answer or fixed failure copy),
// and persist the conversation after each phase. When conversationID is
// empty a new conversation is minted. The identity email is only used to
// attribute published events.
func (e *Engine) Submit(ctx context.Context, conversationID, email, question string) (*model.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	var conv model.Conversation
	if conversationID == "" {
		conv = e.StartConversation()
	} else {
		var err error
		conv, err = e.convs.Get(conversationID)
		if err != nil {
			return nil, err
		}
	}

	if !e.acquire(conv.ID) {
		return nil, ErrConversationBusy
	}
	defer e.release(conv.ID)

	// Optimistic phase: the user message is stored and visible before any
	// network result, and stays visible if the turn fails.
	now := time.Now()
	userMsg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      model.RoleUser,
		Content:   question,
		CreatedAt: now,
	}
	conv.Messages = append(conv.Messages, userMsg)
	conv.Title = conversation.TitleFor(conv.Messages)
	conv.UpdatedAt = now
	e.convs.Upsert(conv)
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()

	e.pub.Publish(ctx, &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		IdentityEmail:  email,
		Type:           model.EventTypeQuestion,
		CreatedAt:      now,
	})

	reply, outcome := e.ask(ctx, conv.ID, question)

	// Resolution phase: exactly one assistant message per accepted submit.
	assistantMsg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      model.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now(),
	}
	conv.Messages = append(conv.Messages, assistantMsg)
	conv.UpdatedAt = assistantMsg.CreatedAt
	e.convs.Upsert(conv)
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()

	eventType := model.EventTypeAnswer
	if outcome != "answered" {
		eventType = model.EventTypeFailure
	}
	e.pub.Publish(ctx, &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		IdentityEmail:  email,
		Type:           eventType,
		Reason:         outcome,
		CreatedAt:      assistantMsg.CreatedAt,
	})

	return &model.AskResponse{
		ConversationID: conv.ID,
		UserMessage:    userMsg,
		AssistantReply: assistantMsg,
	}, nil
}

// ask issues the outbound question and maps every outcome to the assistant
// copy for the turn. No retry: a failed request resolves the turn.
func (e *Engine) ask(ctx context.Context, conversationID, question string) (reply, outcome string) {
	start := time.Now()
	resp, err := e.client.Ask(ctx, question)
	metrics.AskDuration.WithLabelValues(e.client.Name()).Observe(time.Since(start).Seconds())

	switch {
	case err == nil && strings.TrimSpace(resp.Text) != "":
		reply, outcome = resp.Text, "answered"
	case err == nil:
		reply, outcome = MissingAnswerReply, "empty"
	default:
		var statusErr *answer.StatusError
		if errors.As(err, &statusErr) {
			reply, outcome = FailureReply, "failed"
		} else {
			reply, outcome = ConnectivityReply, "connectivity"
		}
		e.logger.Warn("ask failed",
			zap.String("conversation_id", conversationID),
			zap.String("outcome", outcome),
			zap.Error(err))
	}

	metrics.AsksTotal.WithLabelValues(e.client.Name(), outcome).Inc()
	return reply, outcome
}

func (e *Engine) acquire(conversationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inflight[conversationID]; ok {
		return false
	}
	e.inflight[conversationID] = struct{}{}
	return true
}

func (e *Engine) release(conversationID string) {
	e.mu.Lock()
	delete(e.inflight, conversationID)
	e.mu.Unlock()
}
