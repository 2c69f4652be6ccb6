// Package store provides the local key-value persistence layer. It is the
// durable back-copy of the in-memory session state: one shared record for
// the current identity and one record per identity holding that identity's
// conversation list. In-memory state is the source of truth for the running
// session; writes here are best-effort and reads of missing or malformed
// records recover to empty defaults.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/pkg/logger"
)

const (
	bucketSession       = "session"
	bucketConversations = "conversations"

	// currentIdentityKey is the shared, non-namespaced key for the current
	// identity record. At most one identity is current at a time.
	currentIdentityKey = "identity:current"
)

// ChatKey derives the persistence namespace for an identity's conversation
// list. All per-identity keys go through here so the isolation invariant is
// enforced in one place.
func ChatKey(email string) string {
	return "chats:" + strings.ToLower(strings.TrimSpace(email))
}

// Local is a bbolt-backed key-value store.
type Local struct {
	db     *bolt.DB
	logger *logger.Logger
}

// Open opens (creating if needed) the store at path.
func Open(path string, log *logger.Logger) (*Local, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketSession)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(bucketConversations))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Local{db: db, logger: log}, nil
}

// Close closes the underlying database.
func (s *Local) Close() error {
	return s.db.Close()
}

// SaveIdentity persists the current identity record.
func (s *Local) SaveIdentity(id *model.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSession)).Put([]byte(currentIdentityKey), data)
	})
}

// LoadIdentity reads the current identity record. A missing or malformed
// record is not an error; it reports absence and the session stays
// unauthenticated.
func (s *Local) LoadIdentity() (*model.Identity, bool) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketSession)).Get([]byte(currentIdentityKey)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to read identity record", zap.Error(err))
		return nil, false
	}
	if len(raw) == 0 {
		return nil, false
	}

	var id model.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		s.logger.Warn("malformed identity record, treating as absent", zap.Error(err))
		return nil, false
	}
	if id.Email == "" {
		return nil, false
	}
	return &id, true
}

// ClearIdentity removes the current identity record.
func (s *Local) ClearIdentity() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSession)).Delete([]byte(currentIdentityKey))
	})
}

// SaveConversations writes the full conversation list for an identity.
func (s *Local) SaveConversations(email string, convs []model.Conversation) error {
	if convs == nil {
		convs = []model.Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketConversations)).Put([]byte(ChatKey(email)), data)
	})
}

// LoadConversations reads the conversation list for an identity. Missing or
// malformed records recover to an empty list.
func (s *Local) LoadConversations(email string) []model.Conversation {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketConversations)).Get([]byte(ChatKey(email))); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to read conversation record", zap.String("email", email), zap.Error(err))
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var convs []model.Conversation
	if err := json.Unmarshal(raw, &convs); err != nil {
		s.logger.Warn("malformed conversation record, treating as empty",
			zap.String("email", email), zap.Error(err))
		return nil
	}
	return convs
}
