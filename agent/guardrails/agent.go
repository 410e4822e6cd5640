package guardrails

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/BaSui01/agentrun/agent"
)

// Input adapts v to an input guardrail over the text of the run input.
// The validation result becomes the guardrail's output info, and a
// triggered result trips the wire.
func Input(name string, v Validator) agent.InputGuardrail {
	return agent.InputGuardrail{
		Name: name,
		Func: func(ctx context.Context, _ *agent.RunContext, _ *agent.Agent, input []agent.Item) (agent.GuardrailFunctionOutput, error) {
			return check(ctx, v, InputText(input))
		},
	}
}

// Output adapts v to an output guardrail over the final output. Non-string
// outputs are validated as their JSON encoding.
func Output(name string, v Validator) agent.OutputGuardrail {
	return agent.OutputGuardrail{
		Name: name,
		Func: func(ctx context.Context, _ *agent.RunContext, _ *agent.Agent, output any) (agent.GuardrailFunctionOutput, error) {
			text, ok := output.(string)
			if !ok {
				data, err := json.Marshal(output)
				if err != nil {
					return agent.GuardrailFunctionOutput{}, err
				}
				text = string(data)
			}
			return check(ctx, v, text)
		},
	}
}

func check(ctx context.Context, v Validator, text string) (agent.GuardrailFunctionOutput, error) {
	r, err := v.Validate(ctx, text)
	if err != nil {
		return agent.GuardrailFunctionOutput{}, err
	}
	return agent.GuardrailFunctionOutput{OutputInfo: r, TripwireTriggered: r.Triggered()}, nil
}

// InputText joins the user messages of input, one per line.
func InputText(input []agent.Item) string {
	var parts []string
	for _, it := range input {
		if it.Type == agent.ItemUserMessage {
			parts = append(parts, it.Content)
		}
	}
	return strings.Join(parts, "\n")
}
