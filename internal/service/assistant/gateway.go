package assistant

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// RunStatus mirrors the external run lifecycle. Values match the wire format
// of the assistant API.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether the run has reached a failure state it cannot
// leave.
func (s RunStatus) Terminal() bool {
	return s == RunFailed || s == RunCancelled || s == RunExpired
}

// Run is one observation of the external assistant job.
type Run struct {
	ID        string
	Status    RunStatus
	LastError string
	ToolCalls []ToolCall
}

// ToolCall is a model-issued request to invoke a named local capability.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput is the textual result fed back into the run for one tool call.
type ToolOutput struct {
	CallID string
	Output string
}

// ThreadGateway wraps the external assistant conversation API. Failures
// propagate as *UpstreamError; the gateway never retries.
type ThreadGateway interface {
	CreateThread(ctx context.Context) (string, error)
	AddUserMessage(ctx context.Context, threadID, text string) error
	StartRun(ctx context.Context, threadID string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error
	// LatestAssistantText fetches the newest thread message. It reports
	// ok=false when the message is missing, not assistant-authored, or not
	// plain text, so the caller can substitute a fallback reply.
	LatestAssistantText(ctx context.Context, threadID string) (string, bool, error)
}

// UpstreamError tags a network/API failure from the assistant collaborator.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("assistant api %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// OpenAIGateway implements ThreadGateway on the OpenAI Assistants API.
type OpenAIGateway struct {
	client      *openai.Client
	assistantID string
}

// NewOpenAIGateway builds a gateway bound to one configured assistant.
func NewOpenAIGateway(apiKey, assistantID string) *OpenAIGateway {
	return &OpenAIGateway{
		client:      openai.NewClient(apiKey),
		assistantID: assistantID,
	}
}

// VerifyAssistant checks at startup that the configured assistant exists.
func (g *OpenAIGateway) VerifyAssistant(ctx context.Context) (string, error) {
	assistant, err := g.client.RetrieveAssistant(ctx, g.assistantID)
	if err != nil {
		return "", &UpstreamError{Op: "retrieve assistant", Err: err}
	}
	name := ""
	if assistant.Name != nil {
		name = *assistant.Name
	}
	return fmt.Sprintf("%s (%s, model %s)", name, assistant.ID, assistant.Model), nil
}

func (g *OpenAIGateway) CreateThread(ctx context.Context) (string, error) {
	thread, err := g.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", &UpstreamError{Op: "create thread", Err: err}
	}
	return thread.ID, nil
}

func (g *OpenAIGateway) AddUserMessage(ctx context.Context, threadID, text string) error {
	_, err := g.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    "user",
		Content: text,
	})
	if err != nil {
		return &UpstreamError{Op: "create message", Err: err}
	}
	return nil
}

func (g *OpenAIGateway) StartRun(ctx context.Context, threadID string) (Run, error) {
	run, err := g.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: g.assistantID,
	})
	if err != nil {
		return Run{}, &UpstreamError{Op: "create run", Err: err}
	}
	return convertRun(run), nil
}

func (g *OpenAIGateway) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := g.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Run{}, &UpstreamError{Op: "retrieve run", Err: err}
	}
	return convertRun(run), nil
}

func (g *OpenAIGateway) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error {
	converted := make([]openai.ToolOutput, 0, len(outputs))
	for _, out := range outputs {
		converted = append(converted, openai.ToolOutput{
			ToolCallID: out.CallID,
			Output:     out.Output,
		})
	}
	_, err := g.client.SubmitToolOutputs(ctx, threadID, runID, openai.SubmitToolOutputsRequest{
		ToolOutputs: converted,
	})
	if err != nil {
		return &UpstreamError{Op: "submit tool outputs", Err: err}
	}
	return nil
}

func (g *OpenAIGateway) LatestAssistantText(ctx context.Context, threadID string) (string, bool, error) {
	limit := 1
	order := "desc"
	list, err := g.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", false, &UpstreamError{Op: "list messages", Err: err}
	}
	if len(list.Messages) == 0 {
		return "", false, nil
	}
	msg := list.Messages[0]
	if msg.Role != "assistant" || len(msg.Content) == 0 {
		return "", false, nil
	}
	content := msg.Content[0]
	if content.Text == nil {
		return "", false, nil
	}
	return content.Text.Value, true, nil
}

func convertRun(run openai.Run) Run {
	converted := Run{
		ID:     run.ID,
		Status: RunStatus(run.Status),
	}
	if run.LastError != nil {
		converted.LastError = run.LastError.Message
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}
	return converted
}
