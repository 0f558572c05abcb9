package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/echotherapy/backend/internal/auth"
	"github.com/echotherapy/backend/internal/config"
	"github.com/echotherapy/backend/internal/handler"
	"github.com/echotherapy/backend/internal/model/knowledge"
	"github.com/echotherapy/backend/internal/service/assistant"
	"github.com/echotherapy/backend/internal/service/chat"
	"github.com/echotherapy/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.OpenAI.Enabled() {
		log.Fatal("OPENAI_API_KEY and OPENAI_ASSISTANT_ID are required")
	}
	if !cfg.Auth.Enabled() {
		log.Fatal("AUTH_BASE_URL is required")
	}

	st, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open conversation store: %v", err)
	}
	defer st.Close()
	log.Printf("conversation store ready at %s", cfg.Store.Path)

	verifier := auth.NewHTTPVerifier(cfg.Auth.BaseURL, cfg.Auth.ServiceKey)
	gateway := assistant.NewOpenAIGateway(cfg.OpenAI.APIKey, cfg.OpenAI.AssistantID)

	// Confirm the configured assistant exists; a typo here would otherwise
	// only surface on the first turn.
	verifyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if detail, err := gateway.VerifyAssistant(verifyCtx); err != nil {
		log.Printf("warning: could not verify assistant: %v", err)
	} else {
		log.Printf("connected to assistant %s", detail)
	}
	cancel()

	tools := assistant.NewToolExecutor(knowledge.NewMemoryStore(knowledge.Seed()))
	chatService := chat.NewService(st, gateway, tools, chat.Config{
		PollInterval: cfg.OpenAI.PollInterval,
		PollAttempts: cfg.OpenAI.PollAttempts,
		ListLimit:    cfg.Store.ListLimit,
	})

	router := handler.NewRouter(verifier, chatService, handler.StatusInfo{
		OpenAIConfigured: cfg.OpenAI.Enabled(),
		Environment:      cfg.Environment,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("EchoTherapy backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
