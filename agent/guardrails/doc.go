// Package guardrails provides content validators and adapts them to the
// guardrail hooks of the agent run loop.
//
// Validators (length, keyword, PII, prompt injection) can be combined in a
// Chain and attached to an agent:
//
//	chain := guardrails.NewChain(guardrails.ChainFailFast,
//		guardrails.NewLengthValidator(4000, guardrails.LengthActionReject),
//		guardrails.NewPIIDetector(guardrails.PIIActionReject),
//	)
//	a.InputGuardrails = append(a.InputGuardrails, guardrails.Input("input_policy", chain))
//
// A triggered validation result trips the guardrail; the result itself is
// recorded as the guardrail's output info.
package guardrails
