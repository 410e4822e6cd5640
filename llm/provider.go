package llm

import (
	"context"
	"encoding/json"

	"github.com/BaSui01/agentrun/types"
)

// OutputSchema asks the provider for structured output matching Schema.
type OutputSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

// ChatRequest is a single model exchange.
type ChatRequest struct {
	TraceID            string             `json:"trace_id,omitempty"`
	RunID              string             `json:"run_id,omitempty"`
	Model              string             `json:"model"`
	Instructions       string             `json:"instructions,omitempty"`
	Messages           []types.Message    `json:"messages"`
	Tools              []types.ToolSchema `json:"tools,omitempty"`
	OutputSchema       *OutputSchema      `json:"output_schema,omitempty"`
	Settings           ModelSettings      `json:"settings"`
	PreviousResponseID string             `json:"previous_response_id,omitempty"`
}

// ChatResponse is the structured output of one model exchange.
type ChatResponse struct {
	ID       string           `json:"id,omitempty"`
	Provider string           `json:"provider,omitempty"`
	Model    string           `json:"model"`
	Message  types.Message    `json:"message"`
	Usage    types.TokenUsage `json:"usage"`
}

// HasCalls reports whether the response requests any tool invocation.
func (r *ChatResponse) HasCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}

// StreamEventType identifies a stream event.
type StreamEventType string

const (
	StreamEventTextDelta      StreamEventType = "text_delta"
	StreamEventReasoningDelta StreamEventType = "reasoning_delta"
	StreamEventToolCall       StreamEventType = "tool_call"
	StreamEventCompleted      StreamEventType = "completed"
	StreamEventError          StreamEventType = "error"
)

// StreamEvent is one fragment of an incremental exchange. A stream ends with
// exactly one completed or error event; the completed event carries the same
// response Completion would have returned.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Delta    string          `json:"delta,omitempty"`
	ToolCall *types.ToolCall `json:"tool_call,omitempty"`
	Response *ChatResponse   `json:"response,omitempty"`
	Err      error           `json:"-"`
}

// Provider is the model backend contract. Tool calls come back in the
// response; executing them is the runner's job.
type Provider interface {
	// Completion performs one request/response exchange.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream performs the incremental variant.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)

	// Name returns the provider identifier.
	Name() string
}

// SettingsDefaulter is implemented by providers that carry default tuning parameters.
type SettingsDefaulter interface {
	DefaultSettings() ModelSettings
}

// CollectStream drains a stream and returns its terminal response.
// onEvent, when non-nil, sees every event before the terminal one.
func CollectStream(ctx context.Context, ch <-chan StreamEvent, onEvent func(StreamEvent)) (*ChatResponse, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil, types.NewError(types.ErrModelCall, "stream closed without completion event")
			}
			switch ev.Type {
			case StreamEventCompleted:
				if ev.Response == nil {
					return nil, types.NewError(types.ErrModelCall, "completion event without response")
				}
				return ev.Response, nil
			case StreamEventError:
				return nil, ev.Err
			default:
				if onEvent != nil {
					onEvent(ev)
				}
			}
		}
	}
}
