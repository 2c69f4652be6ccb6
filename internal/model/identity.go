// Package model defines data structures for the research chat service.
package model

import (
	"time"
)

// AuthMode selects between the two authentication actions.
type AuthMode string

const (
	AuthModeLogin  AuthMode = "login"
	AuthModeSignup AuthMode = "signup"
)

// Identity is the authenticated user record. There is no real credential
// verification behind it; the record is fabricated on any submitted
// credentials and persisted as the single current identity.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthRequest is the request to log in or sign up.
type AuthRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	DisplayName string   `json:"display_name,omitempty"`
	Mode        AuthMode `json:"mode"`
}

// AuthResponse is the response after a successful authentication.
type AuthResponse struct {
	Identity Identity `json:"identity"`
	Token    string   `json:"token"`
}
