package model

// View names the two presentation states.
type View string

const (
	ViewHome View = "home"
	ViewChat View = "chat"
)

// Session is the transient per-tab state. It is never persisted directly;
// the identity record and the conversation list are the durable pieces.
type Session struct {
	Authenticated         bool      `json:"authenticated"`
	Identity              *Identity `json:"identity,omitempty"`
	CurrentConversationID string    `json:"current_conversation_id,omitempty"`
	View                  View      `json:"view"`
}
