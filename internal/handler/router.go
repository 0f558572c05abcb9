package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/echotherapy/backend/internal/auth"
	chatHandler "github.com/echotherapy/backend/internal/handler/chat"
	"github.com/echotherapy/backend/internal/handler/stream"
	middlewarePkg "github.com/echotherapy/backend/internal/middleware"
	chatmodel "github.com/echotherapy/backend/internal/model/chat"
	chatService "github.com/echotherapy/backend/internal/service/chat"
	"github.com/echotherapy/backend/pkg/utils"
)

// StatusInfo feeds the unauthenticated health/config endpoints.
type StatusInfo struct {
	OpenAIConfigured bool
	Environment      string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(verifier auth.Verifier, chatSvc *chatService.Service, info StatusInfo) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatH := chatHandler.New(chatSvc)
	wsH := chatHandler.NewWS(chatSvc, verifier)
	streamH := stream.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})
		api.Get("/config", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"openai_configured": info.OpenAIConfigured,
				"environment":       info.Environment,
			})
		})

		// The websocket channel verifies its own token from the query string.
		wsH.RegisterRoutes(api)

		api.Group(func(authed chi.Router) {
			authed.Use(middlewarePkg.RequireIdentity(verifier))

			chatH.RegisterRoutes(authed)

			// SSE progress variant of the turn contract.
			authed.Get("/chat/stream", func(w http.ResponseWriter, r *http.Request) {
				identity, ok := middlewarePkg.IdentityFrom(r.Context())
				if !ok {
					utils.RespondError(w, http.StatusUnauthorized, "authorization required")
					return
				}
				req, err := turnRequestFromQuery(r)
				if err != nil {
					utils.RespondError(w, http.StatusBadRequest, err.Error())
					return
				}
				if err := streamH.HandleTurnStream(r.Context(), w, identity, req); err != nil {
					log.Printf("[stream] error handling request: %v", err)
				}
			})
		})
	})

	return r
}

func turnRequestFromQuery(r *http.Request) (chatmodel.TurnRequest, error) {
	req := chatmodel.TurnRequest{Text: r.URL.Query().Get("text")}

	if raw := r.URL.Query().Get("thread_id"); raw != "" {
		req.ThreadID = &raw
	}
	if raw := r.URL.Query().Get("conversation_db_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return chatmodel.TurnRequest{}, fmt.Errorf("invalid conversation_db_id")
		}
		req.ConversationID = &id
	}
	return req, nil
}
