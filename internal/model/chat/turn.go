package chat

// TurnRequest is the wire shape a client submits for one turn. The two
// identifier fields must both be null (new conversation) or both be set
// (continuing conversation); NewTarget rejects every other combination.
type TurnRequest struct {
	Text           string  `json:"text"`
	ThreadID       *string `json:"thread_id"`
	ConversationID *int64  `json:"conversation_db_id"`
}

// TurnResponse is the wire shape returned for a successful turn.
type TurnResponse struct {
	Result         string `json:"result"`
	ThreadID       string `json:"openai_thread_id"`
	ConversationID int64  `json:"conversation_db_id"`
	Explanation    string `json:"explanation,omitempty"`
}

// Target is the resolved destination of a turn: either a brand-new
// conversation or an existing conversation+thread pair. Holding both
// identifiers behind one flag makes the half-specified state impossible to
// carry past the boundary.
type Target struct {
	Continuing     bool
	ThreadID       string
	ConversationID int64
}

// NewTarget folds the two nullable request identifiers into a Target.
// It reports false when exactly one identifier is supplied, or when the
// supplied values are empty; callers must treat that as a client bug,
// not repair it.
func NewTarget(threadID *string, conversationID *int64) (Target, bool) {
	hasThread := threadID != nil && *threadID != ""
	hasConversation := conversationID != nil && *conversationID > 0
	switch {
	case !hasThread && !hasConversation:
		return Target{}, true
	case hasThread && hasConversation:
		return Target{
			Continuing:     true,
			ThreadID:       *threadID,
			ConversationID: *conversationID,
		}, true
	default:
		return Target{}, false
	}
}
