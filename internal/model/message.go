package model

import (
	"time"
)

// Role represents the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation. Messages are immutable once
// appended; assistant messages are produced by the completion of exactly
// one outstanding question.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AskRequest is the request to submit a question to a conversation.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries both halves of a resolved turn.
type AskResponse struct {
	ConversationID string  `json:"conversation_id"`
	UserMessage    Message `json:"user_message"`
	AssistantReply Message `json:"assistant_reply"`
}
