package chat

import "time"

// Roles a persisted message can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message persists one side of a single turn. Messages are immutable once
// written; transcript order is created-at ascending.
type Message struct {
	ID             string    `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
