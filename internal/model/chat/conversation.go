package chat

import "time"

// Conversation groups the messages of one user with exactly one external
// assistant thread. ThreadID and UserID never change after creation.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ThreadID  string    `json:"openai_thread_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
