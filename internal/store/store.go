package store

import (
	"context"
	"errors"

	"github.com/echotherapy/backend/internal/model/chat"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotOwner             = errors.New("conversation belongs to another user")
)

// Store is the durable conversation/message contract consumed by the chat
// service. Ownership is enforced at this boundary: every operation that takes
// an owner must fail, not no-op, when the row belongs to someone else.
type Store interface {
	// CreateConversation inserts a conversation bound to its external thread
	// and returns the store-assigned id.
	CreateConversation(ctx context.Context, owner, threadID, title string) (int64, error)

	// GetConversation returns the conversation only if owner matches.
	GetConversation(ctx context.Context, id int64, owner string) (chat.Conversation, error)

	// TouchConversation refreshes updated-at. It returns ErrNotOwner when the
	// conversation exists under a different owner and ErrConversationNotFound
	// when it does not exist at all.
	TouchConversation(ctx context.Context, id int64, owner string) error

	// InsertMessage appends an immutable message to a conversation.
	InsertMessage(ctx context.Context, conversationID int64, role, content string) (chat.Message, error)

	// ListMessages returns a conversation's messages in created-at ascending
	// order.
	ListMessages(ctx context.Context, conversationID int64) ([]chat.Message, error)

	// ListConversations returns the owner's conversations, most recently
	// updated first, capped at limit.
	ListConversations(ctx context.Context, owner string, limit int) ([]chat.Conversation, error)
}
