package assistant_test

import (
	"strings"
	"testing"

	"github.com/echotherapy/backend/internal/model/knowledge"
	"github.com/echotherapy/backend/internal/service/assistant"
)

func newExecutor() *assistant.ToolExecutor {
	return assistant.NewToolExecutor(knowledge.NewMemoryStore(knowledge.Seed()))
}

func TestExecuteKnownTopicAnyCase(t *testing.T) {
	executor := newExecutor()

	for _, topic := range []string{"stress", "Stress", "STRESS"} {
		out := executor.Execute(assistant.ToolCall{
			ID:        "call_1",
			Name:      "get_general_information_on_topic",
			Arguments: `{"topic": "` + topic + `"}`,
		})
		if out.CallID != "call_1" {
			t.Fatalf("call id not preserved: %q", out.CallID)
		}
		if out.Output == "" || !strings.Contains(strings.ToLower(out.Output), "stress") {
			t.Fatalf("topic %q: unexpected output %q", topic, out.Output)
		}
	}
}

func TestExecuteUnknownTopicReturnsFallback(t *testing.T) {
	executor := newExecutor()

	out := executor.Execute(assistant.ToolCall{
		ID:        "call_2",
		Name:      "get_general_information_on_topic",
		Arguments: `{"topic": "unknown-topic-xyz"}`,
	})
	if out.Output == "" {
		t.Fatal("fallback output must be non-empty")
	}
	if !strings.Contains(out.Output, "unknown-topic-xyz") {
		t.Fatalf("fallback should name the topic, got %q", out.Output)
	}
}

func TestExecuteUnknownFunctionProducesTextualError(t *testing.T) {
	executor := newExecutor()

	out := executor.Execute(assistant.ToolCall{
		ID:        "call_3",
		Name:      "delete_all_user_data",
		Arguments: `{}`,
	})
	if !strings.Contains(out.Output, "delete_all_user_data") || !strings.Contains(out.Output, "not implemented") {
		t.Fatalf("unexpected output for unknown function: %q", out.Output)
	}
}

func TestExecuteMalformedArguments(t *testing.T) {
	executor := newExecutor()

	out := executor.Execute(assistant.ToolCall{
		ID:        "call_4",
		Name:      "get_general_information_on_topic",
		Arguments: `{"topic": `,
	})
	if out.Output == "" {
		t.Fatal("malformed arguments must still yield a textual output")
	}
}

func TestExecuteAllPreservesOrder(t *testing.T) {
	executor := newExecutor()

	outputs := executor.ExecuteAll([]assistant.ToolCall{
		{ID: "a", Name: "get_general_information_on_topic", Arguments: `{"topic":"mindfulness"}`},
		{ID: "b", Name: "nope", Arguments: `{}`},
	})
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	if outputs[0].CallID != "a" || outputs[1].CallID != "b" {
		t.Fatalf("order not preserved: %+v", outputs)
	}
}
