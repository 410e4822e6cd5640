package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// GuardrailFunctionOutput is what a guardrail function reports.
type GuardrailFunctionOutput struct {
	OutputInfo        any
	TripwireTriggered bool
}

// InputGuardrailFunc inspects the raw run input.
type InputGuardrailFunc func(ctx context.Context, rc *RunContext, a *Agent, input []Item) (GuardrailFunctionOutput, error)

// OutputGuardrailFunc inspects the parsed final output.
type OutputGuardrailFunc func(ctx context.Context, rc *RunContext, a *Agent, output any) (GuardrailFunctionOutput, error)

// InputGuardrail runs on the first turn of a run, before any model call.
type InputGuardrail struct {
	Name string
	Func InputGuardrailFunc
}

// OutputGuardrail runs on the final output of the terminating agent.
type OutputGuardrail struct {
	Name string
	Func OutputGuardrailFunc
}

// GuardrailResult records one guardrail invocation. OutputInfo is the JSON
// encoding of the function's diagnostic payload.
type GuardrailResult struct {
	Guardrail         string          `json:"guardrail"`
	Agent             string          `json:"agent"`
	TripwireTriggered bool            `json:"tripwire_triggered"`
	OutputInfo        json.RawMessage `json:"output_info,omitempty"`
}

// DecodeInfo decodes OutputInfo into v.
func (r GuardrailResult) DecodeInfo(v any) error {
	if len(r.OutputInfo) == 0 {
		return nil
	}
	return json.Unmarshal(r.OutputInfo, v)
}

func newGuardrailResult(name string, a *Agent, out GuardrailFunctionOutput) (GuardrailResult, error) {
	res := GuardrailResult{Guardrail: name, Agent: a.Name, TripwireTriggered: out.TripwireTriggered}
	if out.OutputInfo != nil {
		info, err := json.Marshal(out.OutputInfo)
		if err != nil {
			return res, fmt.Errorf("encode guardrail info: %w", err)
		}
		res.OutputInfo = info
	}
	return res, nil
}

// runInputGuardrails runs the pipeline in order. It stops at the first error
// or tripwire; results gathered so far are returned either way.
func runInputGuardrails(ctx context.Context, rc *RunContext, a *Agent, guards []InputGuardrail, input []Item) ([]GuardrailResult, error) {
	results := make([]GuardrailResult, 0, len(guards))
	for _, g := range guards {
		out, err := g.Func(ctx, rc, a, input)
		if err != nil {
			return results, &GuardrailExecutionError{Guardrail: g.Name, Cause: err}
		}
		res, err := newGuardrailResult(g.Name, a, out)
		if err != nil {
			return results, &GuardrailExecutionError{Guardrail: g.Name, Cause: err}
		}
		results = append(results, res)
		if res.TripwireTriggered {
			return results, &InputGuardrailTripwireError{Result: res}
		}
	}
	return results, nil
}

func runOutputGuardrails(ctx context.Context, rc *RunContext, a *Agent, guards []OutputGuardrail, output any) ([]GuardrailResult, error) {
	results := make([]GuardrailResult, 0, len(guards))
	for _, g := range guards {
		out, err := g.Func(ctx, rc, a, output)
		if err != nil {
			return results, &GuardrailExecutionError{Guardrail: g.Name, Cause: err}
		}
		res, err := newGuardrailResult(g.Name, a, out)
		if err != nil {
			return results, &GuardrailExecutionError{Guardrail: g.Name, Cause: err}
		}
		results = append(results, res)
		if res.TripwireTriggered {
			return results, &OutputGuardrailTripwireError{Result: res}
		}
	}
	return results, nil
}
