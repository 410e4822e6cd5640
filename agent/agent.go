package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/BaSui01/agentrun/llm"
)

// InstructionsFunc produces instructions from the run context. It may block.
type InstructionsFunc func(ctx context.Context, rc *RunContext, a *Agent) (string, error)

// Instructions is either static text or a function resolved once per turn.
type Instructions struct {
	text string
	fn   InstructionsFunc
}

// StaticInstructions returns fixed instructions.
func StaticInstructions(text string) Instructions {
	return Instructions{text: text}
}

// DynamicInstructions returns instructions computed by fn each turn.
func DynamicInstructions(fn InstructionsFunc) Instructions {
	return Instructions{fn: fn}
}

// IsDynamic reports whether the instructions are computed.
func (i Instructions) IsDynamic() bool {
	return i.fn != nil
}

// Resolve returns the instruction text for this turn.
func (i Instructions) Resolve(ctx context.Context, rc *RunContext, a *Agent) (string, error) {
	if i.fn == nil {
		return i.text, nil
	}
	return i.fn(ctx, rc, a)
}

// OutputSchema is an agent's output contract. structured.Output[T] implements it.
type OutputSchema interface {
	Name() string
	JSONSchema() json.RawMessage
	Strict() bool
	// Parse validates model text and returns the typed value.
	Parse(text string) (any, error)
}

// Agent is a declarative bundle of instructions, model choice, tools,
// handoff targets and output contract. Treat it as immutable once a run
// uses it; derive variants with Clone.
type Agent struct {
	Name string
	// HandoffDescription tells other agents' models when to hand off here.
	HandoffDescription string
	Instructions       Instructions
	// Model is the model identifier resolved through the runner's llm.Resolver.
	Model         string
	ModelSettings llm.ModelSettings

	Tools       []Tool
	ToolSources []ToolSource
	Handoffs    []*Handoff

	// OutputType is nil for plain-text output.
	OutputType      OutputSchema
	ToolUseBehavior ToolUseBehavior
	// ResetToolChoice forces tool choice back to auto after tools were used.
	// Nil means true.
	ResetToolChoice *bool

	InputGuardrails  []InputGuardrail
	OutputGuardrails []OutputGuardrail
	Hooks            []AgentHooks
}

// Clone returns an independent copy with mutators applied. Slices and
// settings maps are copied; tools, handoffs and hooks are shared by reference.
func (a *Agent) Clone(mutators ...func(*Agent)) *Agent {
	c := *a
	c.ModelSettings = llm.MergeSettings(a.ModelSettings)
	c.Tools = slices.Clone(a.Tools)
	c.ToolSources = slices.Clone(a.ToolSources)
	c.Handoffs = slices.Clone(a.Handoffs)
	c.InputGuardrails = slices.Clone(a.InputGuardrails)
	c.OutputGuardrails = slices.Clone(a.OutputGuardrails)
	c.Hooks = slices.Clone(a.Hooks)
	for _, m := range mutators {
		m(&c)
	}
	return &c
}

func (a *Agent) resetToolChoice() bool {
	return a.ResetToolChoice == nil || *a.ResetToolChoice
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent(%s)", a.Name)
}

// ToolUseMode selects what happens after tools ran.
type ToolUseMode string

const (
	ToolUseRunLLMAgain     ToolUseMode = "run_llm_again"
	ToolUseStopOnFirstTool ToolUseMode = "stop_on_first_tool"
	ToolUseStopAtTools     ToolUseMode = "stop_at_tools"
	ToolUseCustom          ToolUseMode = "custom"
)

// FunctionToolResult is the outcome of one executed tool call.
type FunctionToolResult struct {
	ToolName string
	CallID   string
	Output   string
}

// ToolsToFinalOutput is the verdict of a custom tool use behavior.
type ToolsToFinalOutput struct {
	IsFinalOutput bool
	FinalOutput   any
}

// ToolsToFinalOutputFunc decides whether tool results end the run.
type ToolsToFinalOutputFunc func(ctx context.Context, rc *RunContext, results []FunctionToolResult) (ToolsToFinalOutput, error)

// ToolUseBehavior is the policy applied after tools ran. The zero value
// runs the model again.
type ToolUseBehavior struct {
	mode   ToolUseMode
	stopAt []string
	fn     ToolsToFinalOutputFunc
}

// RunLLMAgain feeds tool results back to the model.
func RunLLMAgain() ToolUseBehavior { return ToolUseBehavior{mode: ToolUseRunLLMAgain} }

// StopOnFirstTool uses the first tool output as the final output.
func StopOnFirstTool() ToolUseBehavior { return ToolUseBehavior{mode: ToolUseStopOnFirstTool} }

// StopAtTools ends the run when any of the named tools ran.
func StopAtTools(names ...string) ToolUseBehavior {
	return ToolUseBehavior{mode: ToolUseStopAtTools, stopAt: names}
}

// CustomToolUse delegates the decision to fn.
func CustomToolUse(fn ToolsToFinalOutputFunc) ToolUseBehavior {
	return ToolUseBehavior{mode: ToolUseCustom, fn: fn}
}

// Mode returns the behavior mode.
func (b ToolUseBehavior) Mode() ToolUseMode {
	if b.mode == "" {
		return ToolUseRunLLMAgain
	}
	return b.mode
}

func (b ToolUseBehavior) decide(ctx context.Context, rc *RunContext, results []FunctionToolResult) (ToolsToFinalOutput, error) {
	if len(results) == 0 {
		return ToolsToFinalOutput{}, nil
	}
	switch b.Mode() {
	case ToolUseStopOnFirstTool:
		return ToolsToFinalOutput{IsFinalOutput: true, FinalOutput: results[0].Output}, nil
	case ToolUseStopAtTools:
		for _, r := range results {
			if slices.Contains(b.stopAt, r.ToolName) {
				return ToolsToFinalOutput{IsFinalOutput: true, FinalOutput: r.Output}, nil
			}
		}
	case ToolUseCustom:
		return b.fn(ctx, rc, results)
	}
	return ToolsToFinalOutput{}, nil
}
