package assistant

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/echotherapy/backend/internal/model/knowledge"
)

// toolName is the closed set of functions the assistant may call. Adding a
// capability means adding a constant here and a case in Execute; anything
// else falls through to the textual error payload.
type toolName string

const toolGeneralInformation toolName = "get_general_information_on_topic"

// ToolExecutor resolves model-requested function calls against the trusted
// knowledge base. It always produces a string output, never an error, so the
// model can recover conversationally.
type ToolExecutor struct {
	topics knowledge.Store
}

// NewToolExecutor builds an executor over the given topic store.
func NewToolExecutor(topics knowledge.Store) *ToolExecutor {
	return &ToolExecutor{topics: topics}
}

// Execute answers one tool call with a plain-text output.
func (e *ToolExecutor) Execute(call ToolCall) ToolOutput {
	switch toolName(call.Name) {
	case toolGeneralInformation:
		var args struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			log.Printf("[tools] bad arguments for %s: %v", call.Name, err)
			return ToolOutput{
				CallID: call.ID,
				Output: fmt.Sprintf("Error: could not parse the arguments for %s.", call.Name),
			}
		}
		return ToolOutput{CallID: call.ID, Output: e.generalInformation(args.Topic)}
	default:
		log.Printf("[tools] assistant requested unknown function %q", call.Name)
		return ToolOutput{
			CallID: call.ID,
			Output: fmt.Sprintf("Error: Function %s is not implemented on this backend.", call.Name),
		}
	}
}

// ExecuteAll resolves a batch of tool calls preserving order.
func (e *ToolExecutor) ExecuteAll(calls []ToolCall) []ToolOutput {
	outputs := make([]ToolOutput, 0, len(calls))
	for _, call := range calls {
		outputs = append(outputs, e.Execute(call))
	}
	return outputs
}

func (e *ToolExecutor) generalInformation(topic string) string {
	article, ok := e.topics.FindByID(topic)
	if !ok {
		return fmt.Sprintf("I currently don't have specific pre-approved general information on '%s' to share. However, I'm here to listen to your thoughts about it.", topic)
	}
	if article.Note == "" {
		return article.Definition
	}
	return article.Definition + " " + article.Note
}
