package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentrun/agent/structured"
	"github.com/BaSui01/agentrun/types"
)

// Tool is the capability interface every tool variant adapts to.
type Tool interface {
	// Definition returns the schema advertised to the model.
	Definition() types.ToolSchema
	// NeedsApproval reports whether this call must wait for a decision.
	NeedsApproval(ctx context.Context, rc *RunContext, args json.RawMessage) (bool, error)
	// Invoke executes the call and returns the text shown to the model.
	Invoke(ctx context.Context, rc *RunContext, call types.ToolCall) (string, error)
}

// ToolSource discovers tools at run time, e.g. from a remote server.
type ToolSource interface {
	ListTools(ctx context.Context, rc *RunContext, a *Agent) ([]Tool, error)
}

// ApprovalFunc computes whether a call needs approval.
type ApprovalFunc func(ctx context.Context, rc *RunContext, args json.RawMessage) (bool, error)

// ErrorFormatter turns a failed tool call into the message the model sees.
type ErrorFormatter func(ctx context.Context, rc *RunContext, err *ToolCallError) string

// ErrorFormattingTool is implemented by tools carrying their own formatter.
type ErrorFormattingTool interface {
	FormatError(ctx context.Context, rc *RunContext, err *ToolCallError) string
}

// FailFastTool is implemented by tools whose failures abort the run.
type FailFastTool interface {
	FailFast() bool
}

// DefaultToolErrorMessage is what the model sees when a tool fails and no
// formatter is configured.
func DefaultToolErrorMessage(err *ToolCallError) string {
	return fmt.Sprintf("An error occurred while running the tool. Please try again. Error: %v", err.Cause)
}

// RejectedToolMessage is the output recorded for a rejected call.
const RejectedToolMessage = "Tool execution was not approved."

// FunctionTool adapts a Go function to Tool.
type FunctionTool struct {
	name        string
	description string
	schema      *structured.Schema
	invoke      func(ctx context.Context, rc *RunContext, args json.RawMessage) (any, error)
	approval    ApprovalFunc
	formatter   ErrorFormatter
	failFast    bool
	timeout     time.Duration
}

// FunctionToolOption configures a FunctionTool.
type FunctionToolOption func(*FunctionTool)

// WithApproval sets a static approval requirement.
func WithApproval(required bool) FunctionToolOption {
	return func(t *FunctionTool) {
		t.approval = func(context.Context, *RunContext, json.RawMessage) (bool, error) { return required, nil }
	}
}

// WithApprovalFunc computes the approval requirement per call.
func WithApprovalFunc(fn ApprovalFunc) FunctionToolOption {
	return func(t *FunctionTool) { t.approval = fn }
}

// WithErrorFormatter sets the failure formatter.
func WithErrorFormatter(fn ErrorFormatter) FunctionToolOption {
	return func(t *FunctionTool) { t.formatter = fn }
}

// WithFailFast makes failures abort the run with a ToolCallError.
func WithFailFast() FunctionToolOption {
	return func(t *FunctionTool) { t.failFast = true }
}

// WithTimeout bounds each invocation.
func WithTimeout(d time.Duration) FunctionToolOption {
	return func(t *FunctionTool) { t.timeout = d }
}

// WithParamsSchema overrides the generated parameter schema.
func WithParamsSchema(schema *structured.Schema) FunctionToolOption {
	return func(t *FunctionTool) { t.schema = schema }
}

// NewFunctionTool builds a tool whose parameters are reflected from T.
// Arguments are validated against the schema, then decoded into T.
func NewFunctionTool[T any](name, description string, fn func(ctx context.Context, rc *RunContext, args T) (any, error), opts ...FunctionToolOption) (*FunctionTool, error) {
	raw, err := structured.Generate[T]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	schema, err := structured.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	t := &FunctionTool{
		name:        name,
		description: description,
		schema:      schema,
		invoke: func(ctx context.Context, rc *RunContext, args json.RawMessage) (any, error) {
			var v T
			if err := json.Unmarshal(args, &v); err != nil {
				return nil, &ModelBehaviorError{Message: fmt.Sprintf("invalid arguments for tool %s", name), Cause: err}
			}
			return fn(ctx, rc, v)
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// MustFunctionTool is like NewFunctionTool but panics on error.
func MustFunctionTool[T any](name, description string, fn func(ctx context.Context, rc *RunContext, args T) (any, error), opts ...FunctionToolOption) *FunctionTool {
	t, err := NewFunctionTool(name, description, fn, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Definition implements Tool.
func (t *FunctionTool) Definition() types.ToolSchema {
	return types.ToolSchema{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.schema.Raw(),
		Kind:        types.ToolKindFunction,
	}
}

// NeedsApproval implements Tool.
func (t *FunctionTool) NeedsApproval(ctx context.Context, rc *RunContext, args json.RawMessage) (bool, error) {
	if t.approval == nil {
		return false, nil
	}
	return t.approval(ctx, rc, args)
}

// FormatError implements ErrorFormattingTool when a formatter is set.
func (t *FunctionTool) FormatError(ctx context.Context, rc *RunContext, err *ToolCallError) string {
	if t.formatter == nil {
		return ""
	}
	return t.formatter(ctx, rc, err)
}

// FailFast implements FailFastTool.
func (t *FunctionTool) FailFast() bool { return t.failFast }

// Invoke implements Tool.
func (t *FunctionTool) Invoke(ctx context.Context, rc *RunContext, call types.ToolCall) (string, error) {
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := t.schema.Validate(args); err != nil {
		return "", &ModelBehaviorError{Message: fmt.Sprintf("invalid arguments for tool %s", t.name), Cause: err}
	}

	if t.timeout <= 0 {
		v, err := t.invoke(ctx, rc, args)
		if err != nil {
			return "", err
		}
		return FormatToolOutput(v)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := t.invoke(ctx, rc, args)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return "", o.err
		}
		return FormatToolOutput(o.v)
	case <-ctx.Done():
		return "", fmt.Errorf("tool %s timed out after %s: %w", t.name, t.timeout, ctx.Err())
	}
}

// FormatToolOutput converts a tool result to model-visible text.
func FormatToolOutput(v any) (string, error) {
	switch out := v.(type) {
	case nil:
		return "", nil
	case string:
		return out, nil
	case []byte:
		return string(out), nil
	case json.RawMessage:
		return string(out), nil
	case fmt.Stringer:
		return out.String(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool output: %w", err)
	}
	return string(data), nil
}

// HostedTool is a tool executed by the model platform. The runner only
// advertises it; the provider returns its effects in the response.
type HostedTool struct {
	ToolName    string
	Description string
	Config      map[string]any
}

// Definition implements Tool.
func (h *HostedTool) Definition() types.ToolSchema {
	return types.ToolSchema{
		Name:        h.ToolName,
		Description: h.Description,
		Parameters:  types.EmptyObjectSchema,
		Kind:        types.ToolKindHosted,
		Config:      h.Config,
	}
}

// NeedsApproval implements Tool.
func (h *HostedTool) NeedsApproval(context.Context, *RunContext, json.RawMessage) (bool, error) {
	return false, nil
}

// Invoke implements Tool. Hosted tools never run locally.
func (h *HostedTool) Invoke(context.Context, *RunContext, types.ToolCall) (string, error) {
	return "", &ModelBehaviorError{Message: fmt.Sprintf("hosted tool %s cannot be executed by the runner", h.ToolName)}
}
