package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/echotherapy/backend/internal/auth"
	chathandler "github.com/echotherapy/backend/internal/handler/chat"
	"github.com/echotherapy/backend/internal/middleware"
	chatmodel "github.com/echotherapy/backend/internal/model/chat"
	"github.com/echotherapy/backend/internal/model/knowledge"
	"github.com/echotherapy/backend/internal/service/assistant"
	chatservice "github.com/echotherapy/backend/internal/service/chat"
	"github.com/echotherapy/backend/internal/store"
)

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	switch token {
	case "alice-token":
		return auth.Identity{UserID: "alice"}, nil
	case "bob-token":
		return auth.Identity{UserID: "bob"}, nil
	default:
		return auth.Identity{}, auth.ErrUnauthorized
	}
}

type stubGateway struct {
	threads int
	runs    int
}

func (g *stubGateway) CreateThread(context.Context) (string, error) {
	g.threads++
	return fmt.Sprintf("thread_%d", g.threads), nil
}

func (g *stubGateway) AddUserMessage(context.Context, string, string) error { return nil }

func (g *stubGateway) StartRun(context.Context, string) (assistant.Run, error) {
	g.runs++
	return assistant.Run{ID: fmt.Sprintf("run_%d", g.runs), Status: assistant.RunQueued}, nil
}

func (g *stubGateway) GetRun(_ context.Context, _ string, runID string) (assistant.Run, error) {
	return assistant.Run{ID: runID, Status: assistant.RunCompleted}, nil
}

func (g *stubGateway) SubmitToolOutputs(context.Context, string, string, []assistant.ToolOutput) error {
	return nil
}

func (g *stubGateway) LatestAssistantText(context.Context, string) (string, bool, error) {
	return "I'm here with you.", true, nil
}

func newChatService(t *testing.T) *chatservice.Service {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite err: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tools := assistant.NewToolExecutor(knowledge.NewMemoryStore(knowledge.Seed()))
	return chatservice.NewService(st, &stubGateway{}, tools, chatservice.Config{
		PollInterval: time.Millisecond,
		PollAttempts: 5,
	})
}

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	svc := newChatService(t)

	r := chi.NewRouter()
	r.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireIdentity(fakeVerifier{}))
		chathandler.New(svc).RegisterRoutes(authed)
	})
	return r
}

func postTurn(t *testing.T, r http.Handler, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestTurnRequiresAuthorization(t *testing.T) {
	r := setupRouter(t)

	resp := postTurn(t, r, "", map[string]string{"text": "hello"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	resp = postTurn(t, r, "wrong-token", map[string]string{"text": "hello"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestTurnRejectsEmptyText(t *testing.T) {
	r := setupRouter(t)

	resp := postTurn(t, r, "alice-token", map[string]string{"text": "   "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTurnRejectsHalfSpecifiedIdentifiers(t *testing.T) {
	r := setupRouter(t)

	resp := postTurn(t, r, "alice-token", map[string]any{"text": "hello", "thread_id": "thread_1"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTurnAndHistoryFlow(t *testing.T) {
	r := setupRouter(t)

	resp := postTurn(t, r, "alice-token", map[string]string{"text": "I'm feeling overwhelmed"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var first chatmodel.TurnResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if first.Result == "" || first.ThreadID == "" || first.ConversationID <= 0 {
		t.Fatalf("incomplete turn response: %+v", first)
	}

	resp = postTurn(t, r, "alice-token", map[string]any{
		"text":               "It's the deadlines",
		"thread_id":          first.ThreadID,
		"conversation_db_id": first.ConversationID,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on continuation, got %d: %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	listResp := httptest.NewRecorder()
	r.ServeHTTP(listResp, req)
	if listResp.Code != http.StatusOK {
		t.Fatalf("expected 200 listing conversations, got %d", listResp.Code)
	}
	var conversations []chatmodel.Conversation
	if err := json.Unmarshal(listResp.Body.Bytes(), &conversations); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(conversations) != 1 || conversations[0].ID != first.ConversationID {
		t.Fatalf("unexpected conversations: %+v", conversations)
	}

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/conversations/%d/messages", first.ConversationID), nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	msgResp := httptest.NewRecorder()
	r.ServeHTTP(msgResp, req)
	if msgResp.Code != http.StatusOK {
		t.Fatalf("expected 200 listing messages, got %d", msgResp.Code)
	}
	var messages []chatmodel.Message
	if err := json.Unmarshal(msgResp.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages after two turns, got %d", len(messages))
	}
	if messages[0].Content != "I'm feeling overwhelmed" || messages[2].Content != "It's the deadlines" {
		t.Fatalf("unexpected transcript order: %+v", messages)
	}
}

func TestMessagesOfForeignConversationForbidden(t *testing.T) {
	r := setupRouter(t)

	resp := postTurn(t, r, "bob-token", map[string]string{"text": "bob's private thoughts"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var turn chatmodel.TurnResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &turn); err != nil {
		t.Fatalf("decode err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/conversations/%d/messages", turn.ConversationID), nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	msgResp := httptest.NewRecorder()
	r.ServeHTTP(msgResp, req)
	if msgResp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", msgResp.Code)
	}
}

func TestForeignConversationTurnForbidden(t *testing.T) {
	r := setupRouter(t)

	resp := postTurn(t, r, "bob-token", map[string]string{"text": "hello"})
	var turn chatmodel.TurnResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &turn); err != nil {
		t.Fatalf("decode err: %v", err)
	}

	resp = postTurn(t, r, "alice-token", map[string]any{
		"text":               "let me in",
		"thread_id":          turn.ThreadID,
		"conversation_db_id": turn.ConversationID,
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}
