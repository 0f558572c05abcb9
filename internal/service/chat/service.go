package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/echotherapy/backend/internal/auth"
	chatmodel "github.com/echotherapy/backend/internal/model/chat"
	"github.com/echotherapy/backend/internal/service/assistant"
	"github.com/echotherapy/backend/internal/store"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 35
	defaultListLimit    = 100

	titleLimit = 40

	fallbackReply = "I'm not quite sure how to respond to that at the moment. Could you try rephrasing or asking something else?"
)

// Config tunes the reconciler's polling and listing behavior. Zero values
// fall back to the defaults above; interval×attempts bounds worst-case turn
// latency.
type Config struct {
	PollInterval time.Duration
	PollAttempts int
	ListLimit    int
}

// Service reconciles one turn at a time between the client, the external
// assistant thread, and the durable store. It holds no per-conversation
// state; concurrent turns on the same conversation are not serialized here
// and can interleave their messages.
type Service struct {
	store   store.Store
	gateway assistant.ThreadGateway
	tools   *assistant.ToolExecutor
	cfg     Config
}

// NewService wires the reconciler to its collaborators.
func NewService(st store.Store, gateway assistant.ThreadGateway, tools *assistant.ToolExecutor, cfg Config) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	return &Service{store: st, gateway: gateway, tools: tools, cfg: cfg}
}

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	Reply          string
	ThreadID       string
	ConversationID int64
}

// HandleTurn produces exactly one assistant reply for the request, creating
// the conversation and thread when the request names neither. Validation and
// ownership failures happen before any external call; external failures after
// the user message is appended leave that message persisted.
//
// HandleTurn is not idempotent: resubmitting the same request appends another
// user message and starts another run.
func (s *Service) HandleTurn(ctx context.Context, identity auth.Identity, req chatmodel.TurnRequest) (TurnResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return TurnResult{}, ErrInvalidInput
	}

	target, ok := chatmodel.NewTarget(req.ThreadID, req.ConversationID)
	if !ok {
		return TurnResult{}, ErrInconsistentState
	}

	threadID, conversationID, err := s.resolveConversation(ctx, identity, target, text)
	if err != nil {
		return TurnResult{}, err
	}

	if err := s.gateway.AddUserMessage(ctx, threadID, text); err != nil {
		return TurnResult{}, err
	}
	// Persist the user's side now so a downstream failure does not lose what
	// they said.
	if _, err := s.store.InsertMessage(ctx, conversationID, chatmodel.RoleUser, text); err != nil {
		log.Printf("[chat] user=%s conversation=%d: failed to persist user message: %v", identity.UserID, conversationID, err)
	}

	run, err := s.gateway.StartRun(ctx, threadID)
	if err != nil {
		return TurnResult{}, err
	}

	run, err = s.awaitRun(ctx, identity, threadID, run)
	if err != nil {
		return TurnResult{}, err
	}

	reply, ok, err := s.gateway.LatestAssistantText(ctx, threadID)
	if err != nil {
		return TurnResult{}, err
	}
	if !ok {
		reply = fallbackReply
	}

	// The caller already has the reply in hand; a failed write here is
	// reported, not surfaced as a failed turn.
	if _, err := s.store.InsertMessage(ctx, conversationID, chatmodel.RoleAssistant, reply); err != nil {
		log.Printf("[chat] user=%s conversation=%d: failed to persist assistant message: %v", identity.UserID, conversationID, err)
	}

	return TurnResult{Reply: reply, ThreadID: threadID, ConversationID: conversationID}, nil
}

// resolveConversation maps the target onto a concrete thread/conversation
// pair, creating both on a new-conversation turn. This is the only place a
// conversation record is ever created.
func (s *Service) resolveConversation(ctx context.Context, identity auth.Identity, target chatmodel.Target, text string) (string, int64, error) {
	if target.Continuing {
		conv, err := s.store.GetConversation(ctx, target.ConversationID, identity.UserID)
		switch {
		case isOwnershipError(err):
			return "", 0, ErrForbidden
		case err != nil:
			return "", 0, fmt.Errorf("store: %w", err)
		}
		// The stored thread ref is authoritative; a client pairing this
		// conversation with some other thread is out of sync.
		if conv.ThreadID != target.ThreadID {
			return "", 0, ErrInconsistentState
		}
		if err := s.store.TouchConversation(ctx, target.ConversationID, identity.UserID); err != nil {
			return "", 0, fmt.Errorf("store: %w", err)
		}
		return target.ThreadID, target.ConversationID, nil
	}

	threadID, err := s.gateway.CreateThread(ctx)
	if err != nil {
		return "", 0, err
	}
	conversationID, err := s.store.CreateConversation(ctx, identity.UserID, threadID, deriveTitle(text))
	if err != nil {
		return "", 0, fmt.Errorf("store: %w", err)
	}
	log.Printf("[chat] user=%s: new conversation %d linked to thread %s", identity.UserID, conversationID, threadID)
	return threadID, conversationID, nil
}

// awaitRun drives the run to completion: sleep, observe, fulfill tool calls,
// repeat until the run completes, fails terminally, or the attempt budget
// runs out.
func (s *Service) awaitRun(ctx context.Context, identity auth.Identity, threadID string, run assistant.Run) (assistant.Run, error) {
	for attempt := 0; attempt < s.cfg.PollAttempts; attempt++ {
		if err := wait(ctx, s.cfg.PollInterval); err != nil {
			return run, err
		}

		var err error
		run, err = s.gateway.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return run, err
		}
		log.Printf("[chat] user=%s thread=%s run=%s status=%s attempt=%d", identity.UserID, threadID, run.ID, run.Status, attempt+1)

		switch {
		case run.Status == assistant.RunCompleted:
			return run, nil
		case run.Status == assistant.RunRequiresAction:
			if err := s.fulfillToolCalls(ctx, threadID, run); err != nil {
				return run, err
			}
		case run.Status.Terminal():
			return run, &RunFailedError{Status: run.Status, Detail: run.LastError}
		}
	}
	return run, ErrRunTimeout
}

// fulfillToolCalls resolves every pending call and submits the outputs back
// in one batch. Unknown functions become textual error payloads, not
// failures, so the model can recover.
func (s *Service) fulfillToolCalls(ctx context.Context, threadID string, run assistant.Run) error {
	outputs := s.tools.ExecuteAll(run.ToolCalls)
	if len(outputs) == 0 {
		return nil
	}
	return s.gateway.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
}

// ListConversations returns the user's conversations, most recently updated
// first, capped at the configured limit.
func (s *Service) ListConversations(ctx context.Context, identity auth.Identity) ([]chatmodel.Conversation, error) {
	conversations, err := s.store.ListConversations(ctx, identity.UserID, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return conversations, nil
}

// Transcript returns the ordered messages of a conversation the user owns.
func (s *Service) Transcript(ctx context.Context, identity auth.Identity, conversationID int64) ([]chatmodel.Message, error) {
	if _, err := s.store.GetConversation(ctx, conversationID, identity.UserID); err != nil {
		if isOwnershipError(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("store: %w", err)
	}
	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return messages, nil
}

// isOwnershipError folds not-found into the ownership failure so the API
// does not reveal whether a foreign conversation id exists.
func isOwnershipError(err error) bool {
	return errors.Is(err, store.ErrNotOwner) || errors.Is(err, store.ErrConversationNotFound)
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
