package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/agentrun/agent/structured"
	"github.com/BaSui01/agentrun/types"
)

// HandoffInputData is the history a handoff filter sees and returns.
// NewItems holds the items of the current turn, including the handoff call
// and its output.
type HandoffInputData struct {
	InputHistory    []Item
	PreHandoffItems []RunItem
	NewItems        []RunItem
}

// All returns the full history in order.
func (d HandoffInputData) All() []Item {
	out := make([]Item, 0, len(d.InputHistory)+len(d.PreHandoffItems)+len(d.NewItems))
	out = append(out, d.InputHistory...)
	out = append(out, ItemsOf(d.PreHandoffItems)...)
	return append(out, ItemsOf(d.NewItems)...)
}

// HandoffInputFilter rewrites the history before the target agent sees it.
type HandoffInputFilter func(ctx context.Context, data HandoffInputData) (HandoffInputData, error)

// Handoff exposes a target agent to the model as a callable tool.
type Handoff struct {
	ToolName        string
	ToolDescription string
	Agent           *Agent
	// InputSchema validates the model's arguments when set.
	InputSchema *structured.Schema
	// OnHandoff fires when the handoff resolves, with the raw arguments.
	OnHandoff   func(ctx context.Context, rc *RunContext, input json.RawMessage) error
	InputFilter HandoffInputFilter
	// IsEnabled hides the handoff from the model when it returns false.
	IsEnabled func(ctx context.Context, rc *RunContext, from *Agent) bool
}

// HandoffOption configures a Handoff.
type HandoffOption func(*Handoff)

// WithToolName overrides the tool name.
func WithToolName(name string) HandoffOption {
	return func(h *Handoff) { h.ToolName = name }
}

// WithToolDescription overrides the tool description.
func WithToolDescription(desc string) HandoffOption {
	return func(h *Handoff) { h.ToolDescription = desc }
}

// WithOnHandoff sets a callback without input.
func WithOnHandoff(fn func(ctx context.Context, rc *RunContext) error) HandoffOption {
	return func(h *Handoff) {
		h.OnHandoff = func(ctx context.Context, rc *RunContext, _ json.RawMessage) error { return fn(ctx, rc) }
	}
}

// WithHandoffInput declares a typed input payload; fn receives it decoded.
func WithHandoffInput[T any](fn func(ctx context.Context, rc *RunContext, input T) error) HandoffOption {
	raw := structured.MustGenerate[T]()
	schema := structured.MustCompile(raw)
	return func(h *Handoff) {
		h.InputSchema = schema
		h.OnHandoff = func(ctx context.Context, rc *RunContext, input json.RawMessage) error {
			var v T
			if err := json.Unmarshal(input, &v); err != nil {
				return &ModelBehaviorError{Message: fmt.Sprintf("invalid input for handoff %s", h.ToolName), Cause: err}
			}
			return fn(ctx, rc, v)
		}
	}
}

// WithInputFilter sets the history filter.
func WithInputFilter(f HandoffInputFilter) HandoffOption {
	return func(h *Handoff) { h.InputFilter = f }
}

// WithEnabled sets the enablement predicate.
func WithEnabled(fn func(ctx context.Context, rc *RunContext, from *Agent) bool) HandoffOption {
	return func(h *Handoff) { h.IsEnabled = fn }
}

// HandoffTo builds a handoff to target with default naming.
func HandoffTo(target *Agent, opts ...HandoffOption) *Handoff {
	h := &Handoff{
		ToolName:        DefaultHandoffToolName(target.Name),
		ToolDescription: DefaultHandoffDescription(target),
		Agent:           target,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DefaultHandoffToolName is "transfer_to_" followed by the function-style agent name.
func DefaultHandoffToolName(agentName string) string {
	return "transfer_to_" + FunctionName(agentName)
}

// DefaultHandoffDescription describes the target for the model.
func DefaultHandoffDescription(a *Agent) string {
	desc := fmt.Sprintf("Handoff to the %s agent to handle the request.", a.Name)
	if a.HandoffDescription != "" {
		desc += " " + a.HandoffDescription
	}
	return desc
}

// FunctionName lowercases s and replaces every rune outside [a-z0-9_] with '_'.
func FunctionName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Definition returns the pseudo-tool schema.
func (h *Handoff) Definition() types.ToolSchema {
	params := types.EmptyObjectSchema
	if h.InputSchema != nil {
		params = h.InputSchema.Raw()
	}
	return types.ToolSchema{
		Name:        h.ToolName,
		Description: h.ToolDescription,
		Parameters:  params,
		Kind:        types.ToolKindFunction,
	}
}

func (h *Handoff) enabled(ctx context.Context, rc *RunContext, from *Agent) bool {
	return h.IsEnabled == nil || h.IsEnabled(ctx, rc, from)
}

// handoffOutput is the tool output recorded for a resolved handoff.
func handoffOutput(target string) string {
	data, _ := json.Marshal(map[string]string{"assistant": target})
	return string(data)
}

// IgnoredHandoffMessage is the output recorded for extra handoffs in one response.
const IgnoredHandoffMessage = "Multiple handoffs detected, ignoring this one."
