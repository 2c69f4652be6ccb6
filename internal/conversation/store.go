// Package conversation holds the in-memory conversation set for the active
// identity and keeps the local store's durable copy in sync on mutation.
package conversation

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/internal/store"
	"github.com/fintastic-ai/research-chat/pkg/logger"
)

// ErrNotFound is returned when a conversation id is unknown.
var ErrNotFound = errors.New("conversation not found")

const (
	// DefaultTitle is used while a conversation has no user message.
	DefaultTitle = "New Chat"

	titleMaxChars = 50
)

// TitleFor derives a conversation title from its messages: the first user
// message truncated to 50 characters and suffixed with an ellipsis, or the
// placeholder when no user message exists yet.
func TitleFor(messages []model.Message) string {
	for _, msg := range messages {
		if msg.Role != model.RoleUser {
			continue
		}
		runes := []rune(msg.Content)
		if len(runes) > titleMaxChars {
			runes = runes[:titleMaxChars]
		}
		return string(runes) + "..."
	}
	return DefaultTitle
}

// Store owns the in-memory conversation set for the current identity.
// Every mutation re-serializes the whole set to the local store under the
// identity's namespaced key; write failures are logged and do not roll back
// the in-memory change.
type Store struct {
	local  *store.Local
	logger *logger.Logger

	mu    sync.RWMutex
	email string
	convs []model.Conversation
}

// NewStore creates an empty conversation store bound to the local store.
func NewStore(local *store.Local, log *logger.Logger) *Store {
	return &Store{local: local, logger: log}
}

// Load replaces the in-memory set with the persisted set for the given
// identity. An absent or malformed record loads as empty.
func (s *Store) Load(email string) {
	convs := s.local.LoadConversations(email)

	s.mu.Lock()
	s.email = email
	s.convs = convs
	s.mu.Unlock()

	s.logger.Info("conversation history loaded",
		zap.String("email", email),
		zap.Int("conversations", len(convs)))
}

// Clear drops the in-memory set. Used on logout; the persisted copy is
// left intact for the next login of the same identity.
func (s *Store) Clear() {
	s.mu.Lock()
	s.email = ""
	s.convs = nil
	s.mu.Unlock()
}

// Get returns a copy of the conversation with the given id.
func (s *Store) Get(id string) (model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.convs {
		if s.convs[i].ID == id {
			return cloneConversation(s.convs[i]), nil
		}
	}
	return model.Conversation{}, ErrNotFound
}

// List returns summaries of all conversations, most recently updated first.
func (s *Store) List() []model.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ConversationSummary, 0, len(s.convs))
	for i := range s.convs {
		out = append(out, s.convs[i].Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Len reports the number of conversations in the set.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// Upsert replaces the conversation with the same id in place, or inserts a
// new one at the front, then persists the whole set. Callers always upsert
// a touched conversation; append-only persistence would duplicate entries.
func (s *Store) Upsert(conv model.Conversation) {
	conv = cloneConversation(conv)

	s.mu.Lock()
	replaced := false
	for i := range s.convs {
		if s.convs[i].ID == conv.ID {
			s.convs[i] = conv
			replaced = true
			break
		}
	}
	if !replaced {
		s.convs = append([]model.Conversation{conv}, s.convs...)
	}
	email := s.email
	snapshot := make([]model.Conversation, len(s.convs))
	copy(snapshot, s.convs)
	s.mu.Unlock()

	if email == "" {
		return
	}
	if err := s.local.SaveConversations(email, snapshot); err != nil {
		// In-memory state stays authoritative for this session.
		s.logger.Warn("failed to persist conversations",
			zap.String("email", email), zap.Error(err))
	}
}

func cloneConversation(c model.Conversation) model.Conversation {
	out := c
	out.Messages = make([]model.Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}
