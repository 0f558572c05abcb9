package chat

import (
	"errors"
	"fmt"

	"github.com/echotherapy/backend/internal/service/assistant"
)

var (
	// ErrInvalidInput means the message text was empty after trimming.
	ErrInvalidInput = errors.New("message content (text) is required and cannot be empty")

	// ErrInconsistentState means exactly one of thread id / conversation id
	// was supplied. This signals a client bug and is never repaired.
	ErrInconsistentState = errors.New("inconsistent conversation state")

	// ErrForbidden means the conversation belongs to another user.
	ErrForbidden = errors.New("conversation does not belong to this user")

	// ErrRunTimeout means the poll budget ran out before the run finished.
	// The external run may still be executing.
	ErrRunTimeout = errors.New("assistant response timed out")
)

// RunFailedError reports a run that reached a terminal failure state,
// carrying the external error detail.
type RunFailedError struct {
	Status assistant.RunStatus
	Detail string
}

func (e *RunFailedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("assistant run failed with status %s", e.Status)
	}
	return fmt.Sprintf("assistant run failed with status %s: %s", e.Status, e.Detail)
}
