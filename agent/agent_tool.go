package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/agentrun/agent/structured"
	"github.com/BaSui01/agentrun/types"
)

// AgentToolOptions configures how an Agent is exposed as a tool.
type AgentToolOptions struct {
	// Name overrides the default tool name ("agent_" + function-style agent name).
	Name string
	// Description overrides the agent's handoff description.
	Description string
	// OutputExtractor turns the sub-run result into the tool output.
	// The default is the final output as text.
	OutputExtractor func(ctx context.Context, result *RunResult) (string, error)
	// MaxTurns bounds the sub-run; zero uses the runner default.
	MaxTurns      int
	NeedsApproval ApprovalFunc
	RunConfig     *RunConfig
}

type agentToolInput struct {
	Input string `json:"input" jsonschema:"required,description=The input to send to the agent"`
}

var agentToolSchema = structured.MustCompile(structured.MustGenerate[agentToolInput]())

// agentTool runs a sub-agent to completion and reports its output. Unlike a
// handoff, control returns to the calling agent.
type agentTool struct {
	agent *Agent
	opts  AgentToolOptions
	name  string
}

// AsTool exposes a as a tool. The sub-run shares the caller's runner and
// context value.
func (a *Agent) AsTool(opts AgentToolOptions) Tool {
	name := opts.Name
	if name == "" {
		name = "agent_" + FunctionName(a.Name)
	}
	return &agentTool{agent: a, opts: opts, name: name}
}

// Definition implements Tool.
func (t *agentTool) Definition() types.ToolSchema {
	desc := t.opts.Description
	if desc == "" {
		desc = t.agent.HandoffDescription
	}
	if desc == "" {
		desc = fmt.Sprintf("Delegate a task to the %s agent", t.agent.Name)
	}
	return types.ToolSchema{
		Name:        t.name,
		Description: desc,
		Parameters:  agentToolSchema.Raw(),
		Kind:        types.ToolKindFunction,
	}
}

// NeedsApproval implements Tool.
func (t *agentTool) NeedsApproval(ctx context.Context, rc *RunContext, args json.RawMessage) (bool, error) {
	if t.opts.NeedsApproval == nil {
		return false, nil
	}
	return t.opts.NeedsApproval(ctx, rc, args)
}

// Invoke implements Tool.
func (t *agentTool) Invoke(ctx context.Context, rc *RunContext, call types.ToolCall) (string, error) {
	if err := agentToolSchema.Validate(call.Arguments); err != nil {
		return "", &ModelBehaviorError{Message: fmt.Sprintf("invalid arguments for tool %s", t.name), Cause: err}
	}
	var args agentToolInput
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return "", &ModelBehaviorError{Message: fmt.Sprintf("invalid arguments for tool %s", t.name), Cause: err}
	}
	if rc == nil || rc.runner == nil {
		return "", fmt.Errorf("agent tool %s invoked outside a run", t.name)
	}

	opts := []RunOption{WithContext(rc.Value)}
	if t.opts.MaxTurns > 0 {
		opts = append(opts, WithMaxTurns(t.opts.MaxTurns))
	}
	if t.opts.RunConfig != nil {
		opts = append(opts, WithRunConfig(t.opts.RunConfig))
	}
	result, err := rc.runner.Run(ctx, t.agent, Text(args.Input), opts...)
	if err != nil {
		// Not wrapped: the sub-run's state must not surface as the caller's.
		return "", fmt.Errorf("agent %s: %s", t.agent.Name, err.Error())
	}
	rc.addUsage(result.Usage)
	if result.Interrupted() {
		return "", fmt.Errorf("agent %s suspended with %d pending approvals", t.agent.Name, len(result.Interruptions))
	}
	if t.opts.OutputExtractor != nil {
		return t.opts.OutputExtractor(ctx, result)
	}
	return result.FinalOutputText(), nil
}
