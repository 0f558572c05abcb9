package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/echotherapy/backend/internal/auth"
	"github.com/echotherapy/backend/internal/handler/stream"
	chatmodel "github.com/echotherapy/backend/internal/model/chat"
	"github.com/echotherapy/backend/internal/model/knowledge"
	"github.com/echotherapy/backend/internal/service/assistant"
	chatservice "github.com/echotherapy/backend/internal/service/chat"
	"github.com/echotherapy/backend/internal/store"
)

var alice = auth.Identity{UserID: "alice"}

type stubGateway struct {
	startRunErr error
}

func (g *stubGateway) CreateThread(context.Context) (string, error) { return "thread_1", nil }

func (g *stubGateway) AddUserMessage(context.Context, string, string) error { return nil }

func (g *stubGateway) StartRun(context.Context, string) (assistant.Run, error) {
	if g.startRunErr != nil {
		return assistant.Run{}, g.startRunErr
	}
	return assistant.Run{ID: "run_1", Status: assistant.RunQueued}, nil
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

func newStreamHandler(t *testing.T, gw assistant.ThreadGateway) *stream.Handler {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite err: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tools := assistant.NewToolExecutor(knowledge.NewMemoryStore(knowledge.Seed()))
	svc := chatservice.NewService(st, gw, tools, chatservice.Config{
		PollInterval: time.Millisecond,
		PollAttempts: 5,
	})
	return stream.New(svc)
}

func decodeFrames(t *testing.T, body string) []stream.StreamEvent {
	t.Helper()
	var frames []stream.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame stream.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("decode frame %q: %v", line, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestStreamFrameOrder(t *testing.T) {
	h := newStreamHandler(t, &stubGateway{})
	rec := httptest.NewRecorder()

	err := h.HandleTurnStream(context.Background(), rec, alice, chatmodel.TurnRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("HandleTurnStream err: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 3 {
		t.Fatalf("expected start/reply/end, got %+v", frames)
	}
	if frames[0].Event != "start" || frames[1].Event != "reply" || frames[2].Event != "end" {
		t.Fatalf("unexpected frame order: %+v", frames)
	}
	if frames[1].Content != "I'm here with you." || frames[1].ThreadID == "" || frames[1].ConversationID <= 0 {
		t.Fatalf("incomplete reply frame: %+v", frames[1])
	}
	if !frames[2].Finished {
		t.Fatal("end frame not marked finished")
	}
}

func TestStreamEmptyTextError(t *testing.T) {
	h := newStreamHandler(t, &stubGateway{})
	rec := httptest.NewRecorder()

	err := h.HandleTurnStream(context.Background(), rec, alice, chatmodel.TurnRequest{Text: "   "})
	if !errors.Is(err, chatservice.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 2 || frames[0].Event != "start" || frames[1].Event != "error" {
		t.Fatalf("expected start/error, got %+v", frames)
	}
	if !strings.Contains(frames[1].Error, "cannot be empty") {
		t.Fatalf("unexpected error message: %q", frames[1].Error)
	}
}

func TestStreamErrorFrameHidesInternalDetail(t *testing.T) {
	h := newStreamHandler(t, &stubGateway{startRunErr: errors.New("dial tcp 10.0.0.5: connection refused")})
	rec := httptest.NewRecorder()

	err := h.HandleTurnStream(context.Background(), rec, alice, chatmodel.TurnRequest{Text: "hello"})
	if err == nil {
		t.Fatal("expected an error")
	}

	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 2 || frames[1].Event != "error" {
		t.Fatalf("expected start/error, got %+v", frames)
	}
	if frames[1].Error != "failed to get a response from the assistant" {
		t.Fatalf("unexpected client-facing message: %q", frames[1].Error)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Fatalf("internal detail leaked into stream: %s", rec.Body.String())
	}
}
