package agent

import (
	"context"

	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/types"
)

// RunHooks observes a whole run. Methods are called synchronously from the
// run loop; tool hooks may be called concurrently when parallel tool
// execution is enabled.
type RunHooks interface {
	OnAgentStart(ctx context.Context, rc *RunContext, a *Agent)
	OnAgentEnd(ctx context.Context, rc *RunContext, a *Agent, output any)
	OnHandoff(ctx context.Context, rc *RunContext, from, to *Agent)
	OnToolStart(ctx context.Context, rc *RunContext, a *Agent, call types.ToolCall)
	OnToolEnd(ctx context.Context, rc *RunContext, a *Agent, call types.ToolCall, output string)
	OnLLMStart(ctx context.Context, rc *RunContext, a *Agent, req *llm.ChatRequest)
	OnLLMEnd(ctx context.Context, rc *RunContext, a *Agent, resp *llm.ChatResponse)
	OnRunEnd(ctx context.Context, rc *RunContext, result *RunResult, err error)
}

// AgentHooks observes events concerning one agent.
type AgentHooks interface {
	OnStart(ctx context.Context, rc *RunContext, a *Agent)
	OnEnd(ctx context.Context, rc *RunContext, a *Agent, output any)
	// OnHandoff fires on the agent being handed to.
	OnHandoff(ctx context.Context, rc *RunContext, a *Agent, source *Agent)
	OnToolStart(ctx context.Context, rc *RunContext, a *Agent, call types.ToolCall)
	OnToolEnd(ctx context.Context, rc *RunContext, a *Agent, call types.ToolCall, output string)
}

// NoopRunHooks implements RunHooks with no-ops; embed it to override a subset.
type NoopRunHooks struct{}

func (NoopRunHooks) OnAgentStart(context.Context, *RunContext, *Agent) {}
func (NoopRunHooks) OnAgentEnd(context.Context, *RunContext, *Agent, any) {}
func (NoopRunHooks) OnHandoff(context.Context, *RunContext, *Agent, *Agent) {}
func (NoopRunHooks) OnToolStart(context.Context, *RunContext, *Agent, types.ToolCall) {}
func (NoopRunHooks) OnToolEnd(context.Context, *RunContext, *Agent, types.ToolCall, string) {}
func (NoopRunHooks) OnLLMStart(context.Context, *RunContext, *Agent, *llm.ChatRequest) {}
func (NoopRunHooks) OnLLMEnd(context.Context, *RunContext, *Agent, *llm.ChatResponse) {}
func (NoopRunHooks) OnRunEnd(context.Context, *RunContext, *RunResult, error) {}

// NoopAgentHooks implements AgentHooks with no-ops.
type NoopAgentHooks struct{}

func (NoopAgentHooks) OnStart(context.Context, *RunContext, *Agent) {}
func (NoopAgentHooks) OnEnd(context.Context, *RunContext, *Agent, any) {}
func (NoopAgentHooks) OnHandoff(context.Context, *RunContext, *Agent, *Agent) {}
func (NoopAgentHooks) OnToolStart(context.Context, *RunContext, *Agent, types.ToolCall) {}
func (NoopAgentHooks) OnToolEnd(context.Context, *RunContext, *Agent, types.ToolCall, string) {}

// observers fans events out to the run-level and agent-level lists.
type observers struct {
	run []RunHooks
}

func (o observers) agentStart(ctx context.Context, rc *RunContext, a *Agent) {
	for _, h := range o.run {
		h.OnAgentStart(ctx, rc, a)
	}
	for _, h := range a.Hooks {
		h.OnStart(ctx, rc, a)
	}
}

func (o observers) agentEnd(ctx context.Context, rc *RunContext, a *Agent, output any) {
	for _, h := range o.run {
		h.OnAgentEnd(ctx, rc, a, output)
	}
	for _, h := range a.Hooks {
		h.OnEnd(ctx, rc, a, output)
	}
}

func (o observers) handoff(ctx context.Context, rc *RunContext, from, to *Agent) {
	for _, h := range o.run {
		h.OnHandoff(ctx, rc, from, to)
	}
	for _, h := range to.Hooks {
		h.OnHandoff(ctx, rc, to, from)
	}
}

func (o observers) toolStart(ctx context.Context, rc *RunContext, a *Agent, call types.ToolCall) {
	for _, h := range o.run {
		h.OnToolStart(ctx, rc, a, call)
	}
	for _, h := range a.Hooks {
		h.OnToolStart(ctx, rc, a, call)
	}
}

func (o observers) toolEnd(ctx context.Context, rc *RunContext, a *Agent, call types.ToolCall, output string) {
	for _, h := range o.run {
		h.OnToolEnd(ctx, rc, a, call, output)
	}
	for _, h := range a.Hooks {
		h.OnToolEnd(ctx, rc, a, call, output)
	}
}

func (o observers) llmStart(ctx context.Context, rc *RunContext, a *Agent, req *llm.ChatRequest) {
	for _, h := range o.run {
		h.OnLLMStart(ctx, rc, a, req)
	}
}

func (o observers) llmEnd(ctx context.Context, rc *RunContext, a *Agent, resp *llm.ChatResponse) {
	for _, h := range o.run {
		h.OnLLMEnd(ctx, rc, a, resp)
	}
}

func (o observers) runEnd(ctx context.Context, rc *RunContext, result *RunResult, err error) {
	for _, h := range o.run {
		h.OnRunEnd(ctx, rc, result, err)
	}
}
