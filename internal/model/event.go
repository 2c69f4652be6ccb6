package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeQuestion EventType = "question"
	EventTypeAnswer   EventType = "answer"
	EventTypeFailure  EventType = "failure"
)

// ConversationEvent is an emit-only audit record published when a turn is
// opened, answered, or fails. Event delivery is best-effort and never
// affects the turn outcome.
type ConversationEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	IdentityEmail  string    `json:"identity_email"`
	Type           EventType `json:"type"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
