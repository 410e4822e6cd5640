package agent

import (
	"context"

	"github.com/BaSui01/agentrun/llm"
)

// runConfigKey is the unexported context key for RunConfig.
type runConfigKey struct{}

// RunConfig provides run-wide overrides. Pointer and nil fields mean
// "no override"; only set values are applied on top of the agent.
type RunConfig struct {
	// Model overrides every agent's model for the whole run.
	Model         *string           `json:"model,omitempty"`
	ModelSettings llm.ModelSettings `json:"model_settings,omitempty"`

	// Run-level guardrails execute before the agent's own.
	InputGuardrails  []InputGuardrail  `json:"-"`
	OutputGuardrails []OutputGuardrail `json:"-"`

	// HandoffInputFilter applies to handoffs without their own filter.
	HandoffInputFilter HandoffInputFilter `json:"-"`
	// ToolErrorFormatter applies to tools without their own formatter.
	ToolErrorFormatter ErrorFormatter `json:"-"`

	// ParallelToolCalls executes the tool calls of one response concurrently.
	ParallelToolCalls bool `json:"parallel_tool_calls,omitempty"`
	// UsePreviousResponseID forwards the last response id to the provider.
	UsePreviousResponseID bool              `json:"use_previous_response_id,omitempty"`
	TracingDisabled       bool              `json:"tracing_disabled,omitempty"`
	WorkflowName          string            `json:"workflow_name,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
}

// ContextWithRunConfig stores a RunConfig in the context. Runs started with
// that context use it unless WithRunConfig is passed explicitly.
func ContextWithRunConfig(ctx context.Context, rc *RunConfig) context.Context {
	return context.WithValue(ctx, runConfigKey{}, rc)
}

// RunConfigFromContext retrieves the RunConfig from the context, or nil.
func RunConfigFromContext(ctx context.Context) *RunConfig {
	rc, _ := ctx.Value(runConfigKey{}).(*RunConfig)
	return rc
}

// modelFor resolves the model id: run override > agent > default.
func (rc *RunConfig) modelFor(a *Agent, fallback string) string {
	if rc != nil && rc.Model != nil && *rc.Model != "" {
		return *rc.Model
	}
	if a.Model != "" {
		return a.Model
	}
	return fallback
}

// settingsFor merges provider defaults < agent < run, field by field.
func (rc *RunConfig) settingsFor(a *Agent, providerDefaults llm.ModelSettings) llm.ModelSettings {
	layers := []llm.ModelSettings{providerDefaults, a.ModelSettings}
	if rc != nil {
		layers = append(layers, rc.ModelSettings)
	}
	return llm.MergeSettings(layers...)
}

func (rc *RunConfig) inputGuardrails(a *Agent) []InputGuardrail {
	var out []InputGuardrail
	if rc != nil {
		out = append(out, rc.InputGuardrails...)
	}
	return append(out, a.InputGuardrails...)
}

func (rc *RunConfig) outputGuardrails(a *Agent) []OutputGuardrail {
	var out []OutputGuardrail
	if rc != nil {
		out = append(out, rc.OutputGuardrails...)
	}
	return append(out, a.OutputGuardrails...)
}

// handoffFilter resolves the filter: handoff's own > run-level > none.
func (rc *RunConfig) handoffFilter(h *Handoff) HandoffInputFilter {
	if h.InputFilter != nil {
		return h.InputFilter
	}
	if rc != nil {
		return rc.HandoffInputFilter
	}
	return nil
}

// formatToolError resolves the message: tool's own > run-level > default.
func (rc *RunConfig) formatToolError(ctx context.Context, runCtx *RunContext, t Tool, err *ToolCallError) string {
	if f, ok := t.(ErrorFormattingTool); ok {
		if msg := f.FormatError(ctx, runCtx, err); msg != "" {
			return msg
		}
	}
	if rc != nil && rc.ToolErrorFormatter != nil {
		if msg := rc.ToolErrorFormatter(ctx, runCtx, err); msg != "" {
			return msg
		}
	}
	return DefaultToolErrorMessage(err)
}
