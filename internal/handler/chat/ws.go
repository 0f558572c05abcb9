package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/echotherapy/backend/internal/auth"
	chatmodel "github.com/echotherapy/backend/internal/model/chat"
	chatservice "github.com/echotherapy/backend/internal/service/chat"
)

// thinkingInterval paces the status frames sent while a run is in flight;
// turns can take tens of seconds and clients need a liveness signal.
const thinkingInterval = 5 * time.Second

// WSHandler serves a live turn channel: the client submits turn requests and
// receives progress frames and the final reply over one connection. The POST
// contract stays canonical; this channel wraps the same reconciler.
type WSHandler struct {
	chatSvc  *chatservice.Service
	verifier auth.Verifier
	upgrader websocket.Upgrader
}

// NewWS creates the websocket handler.
func NewWS(chatSvc *chatservice.Service, verifier auth.Verifier) *WSHandler {
	return &WSHandler{
		chatSvc:  chatSvc,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes attaches the websocket route. Browsers cannot set headers on
// websocket upgrades, so the bearer token travels as a query parameter and is
// verified here rather than by the shared middleware.
func (h *WSHandler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

type wsInbound struct {
	Type           string  `json:"type"`
	Text           string  `json:"text"`
	ThreadID       *string `json:"thread_id"`
	ConversationID *int64  `json:"conversation_db_id"`
}

type wsOutbound struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *WSHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Verify(r.Context(), r.URL.Query().Get("access_token"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		http.Error(w, "invalid or expired token", status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log.Printf("[ws] conn=%s user=%s connected", connID, identity.UserID)
	defer log.Printf("[ws] conn=%s user=%s disconnected", connID, identity.UserID)

	for {
		var inbound wsInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] conn=%s read error: %v", connID, err)
			}
			return
		}

		switch inbound.Type {
		case "turn":
			h.runTurn(r.Context(), conn, identity, inbound)
		default:
			h.send(conn, wsOutbound{Type: "error", Error: "unsupported message type"})
		}
	}
}

// runTurn drives one turn while keeping the connection warm with status
// frames. All writes happen on this goroutine, so frames never interleave.
func (h *WSHandler) runTurn(ctx context.Context, conn *websocket.Conn, identity auth.Identity, inbound wsInbound) {
	h.send(conn, wsOutbound{Type: "accepted"})

	type outcome struct {
		result chatservice.TurnResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := h.chatSvc.HandleTurn(ctx, identity, chatmodel.TurnRequest{
			Text:           inbound.Text,
			ThreadID:       inbound.ThreadID,
			ConversationID: inbound.ConversationID,
		})
		done <- outcome{result: result, err: err}
	}()

	ticker := time.NewTicker(thinkingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.send(conn, wsOutbound{Type: "status", Data: map[string]string{"message": "assistant is thinking"}})
		case out := <-done:
			if out.err != nil {
				_, message := TurnErrorStatus(out.err)
				h.send(conn, wsOutbound{Type: "error", Error: message})
				return
			}
			h.send(conn, wsOutbound{Type: "reply", Data: chatmodel.TurnResponse{
				Result:         out.result.Reply,
				ThreadID:       out.result.ThreadID,
				ConversationID: out.result.ConversationID,
			}})
			return
		}
	}
}

func (h *WSHandler) send(conn *websocket.Conn, msg wsOutbound) {
	msg.Timestamp = time.Now().UnixMilli()
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write failed: %v", err)
	}
}
