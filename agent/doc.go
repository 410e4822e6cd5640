/*
Package agent implements the agent run loop: a turn-based state machine that
drives one or more LLM-backed agents through tool calls, approvals,
handoffs, guardrails and structured output, producing a resumable RunState.

# Overview

An Agent is a declarative bundle of instructions, model choice, tools,
handoff targets and an output contract. A Runner executes it:

	┌──────────────────────────────────────────────────────────┐
	│                        Runner.Run                        │
	│  input guardrails → model call → classify response       │
	├──────────────────────────────────────────────────────────┤
	│  final output     │  tool calls          │  handoff      │
	│  parse + output   │  approval → execute  │  filter →     │
	│  guardrails       │  → tool use behavior │  switch agent │
	├──────────────────────────────────────────────────────────┤
	│                 RunState (serializable)                  │
	└──────────────────────────────────────────────────────────┘

Each iteration checks cancellation, enforces the turn budget, resolves the
active agent's instructions and tools, calls the model resolved through the
runner's llm.Resolver and interprets the response.

# Basic Usage

	runner := agent.NewRunner(agent.Config{Resolver: registry, DefaultModel: "gpt-4o"})

	weather := agent.MustFunctionTool("get_weather", "Current weather for a city",
	    func(ctx context.Context, rc *agent.RunContext, args struct {
	        City string `json:"city" jsonschema:"required"`
	    }) (any, error) {
	        return lookup(ctx, args.City)
	    })

	assistant := &agent.Agent{
	    Name:         "assistant",
	    Instructions: agent.StaticInstructions("You are a helpful assistant."),
	    Tools:        []agent.Tool{weather},
	}

	result, err := runner.Run(ctx, assistant, agent.Text("Weather in Paris?"))

# Approvals

Tools built WithApproval suspend the run. The result carries Interruptions
and the RunState; record decisions and resume:

	for _, it := range result.Interruptions {
	    _ = result.State.Approve(it)
	}
	result, err = runner.Run(ctx, assistant, result.State)

States can be persisted with MarshalJSON and restored with UnmarshalRunState
against the same agent graph. ApplyDecisions records decisions on the
serialized form directly.

# Errors

Run errors implement RunStateCarrier; StateOf returns the state at the point
of failure so callers can inspect history and resume or abort deliberately.

# Streaming

RunStreamed runs the same loop in a goroutine and delivers raw model deltas,
run item events and agent updates on a channel. Call Wait before treating
the output as final.
*/
package agent
