package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/echotherapy/backend/internal/auth"
	chathandler "github.com/echotherapy/backend/internal/handler/chat"
	chatmodel "github.com/echotherapy/backend/internal/model/chat"
	chatservice "github.com/echotherapy/backend/internal/service/chat"
	"github.com/echotherapy/backend/pkg/utils"
)

// Handler streams turn progress over Server-Sent Events. The turn itself is
// still one request/one reply; the stream only adds liveness while the
// assistant run is polled.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates a new stream handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamEvent is one frame of the turn progress stream.
type StreamEvent struct {
	Event          string `json:"event"`
	Content        string `json:"content,omitempty"`
	ThreadID       string `json:"openai_thread_id,omitempty"`
	ConversationID int64  `json:"conversation_db_id,omitempty"`
	Finished       bool   `json:"finished,omitempty"`
	Error          string `json:"error,omitempty"`
}

// HandleTurnStream runs one turn for the identity and emits
// start/status/reply/end frames while it is in flight.
func (h *Handler) HandleTurnStream(ctx context.Context, w http.ResponseWriter, identity auth.Identity, req chatmodel.TurnRequest) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, StreamEvent{Event: "start"})

	type outcome struct {
		result chatservice.TurnResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := h.chatSvc.HandleTurn(ctx, identity, req)
		done <- outcome{result: result, err: err}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			utils.SendSSEChunk(w, flusher, StreamEvent{Event: "status", Content: "assistant is thinking"})
		case out := <-done:
			if out.err != nil {
				_, message := chathandler.TurnErrorStatus(out.err)
				utils.SendSSEChunk(w, flusher, StreamEvent{Event: "error", Error: message})
				return out.err
			}
			utils.SendSSEChunk(w, flusher, StreamEvent{
				Event:          "reply",
				Content:        out.result.Reply,
				ThreadID:       out.result.ThreadID,
				ConversationID: out.result.ConversationID,
			})
			utils.SendSSEChunk(w, flusher, StreamEvent{Event: "end", Finished: true})
			log.Printf("[stream] completed turn for user=%s conversation=%d", identity.UserID, out.result.ConversationID)
			return nil
		}
	}
}
