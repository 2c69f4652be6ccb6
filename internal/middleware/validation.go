package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateQuestion validates submitted question text.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return errors.New("question cannot be empty")
	}
	if len(question) > 100000 { // ~100KB limit
		return errors.New("question exceeds maximum length")
	}
	if !utf8.ValidString(question) {
		return errors.New("question must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateEmail performs a shape check on an email address. No delivery
// verification happens anywhere in the system.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email cannot be empty")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return errors.New("invalid email address")
	}
	if len(email) > 254 {
		return errors.New("email exceeds maximum length")
	}
	return nil
}

// ValidateDisplayName validates an optional display name.
func ValidateDisplayName(name string) error {
	if len(name) > 64 {
		return errors.New("display name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("display name must be valid UTF-8")
	}
	return nil
}
