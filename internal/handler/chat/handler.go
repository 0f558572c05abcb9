package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/echotherapy/backend/internal/middleware"
	chatmodel "github.com/echotherapy/backend/internal/model/chat"
	chatservice "github.com/echotherapy/backend/internal/service/chat"
	"github.com/echotherapy/backend/pkg/utils"
)

// Handler exposes the turn and history contracts over HTTP.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes attaches the chat routes. The router must run these behind
// the identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleTurn)
	r.Get("/conversations", h.handleListConversations)
	r.Get("/conversations/{conversationID}/messages", h.handleListMessages)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var req chatmodel.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.HandleTurn(r.Context(), identity, req)
	if err != nil {
		status, message := TurnErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Printf("[chat] user=%s: turn failed: %v", identity.UserID, err)
		}
		utils.RespondError(w, status, message)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatmodel.TurnResponse{
		Result:         result.Reply,
		ThreadID:       result.ThreadID,
		ConversationID: result.ConversationID,
		Explanation:    "Response from EchoTherapy companion.",
	})
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	conversations, err := h.chatSvc.ListConversations(r.Context(), identity)
	if err != nil {
		log.Printf("[chat] user=%s: list conversations failed: %v", identity.UserID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}

	utils.RespondJSON(w, http.StatusOK, conversations)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	conversationID, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	messages, err := h.chatSvc.Transcript(r.Context(), identity, conversationID)
	if errors.Is(err, chatservice.ErrForbidden) {
		utils.RespondError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		log.Printf("[chat] user=%s conversation=%d: transcript failed: %v", identity.UserID, conversationID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}

// TurnErrorStatus maps the reconciler's error taxonomy onto the wire
// contract's status codes and client-safe messages. Every surface that
// reports a failed turn goes through this mapping so internal detail never
// reaches the client.
func TurnErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chatservice.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chatservice.ErrInconsistentState):
		return http.StatusBadRequest, "inconsistent conversation state, please start a new chat"
	case errors.Is(err, chatservice.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, chatservice.ErrRunTimeout):
		return http.StatusInternalServerError, "the assistant took too long to respond, please try sending your message again"
	default:
		return http.StatusInternalServerError, "failed to get a response from the assistant"
	}
}
