// Package handoff provides history filters for agent handoffs.
//
// A filter rewrites the conversation the receiving agent sees. Attach one to
// a single handoff or to every handoff of a run:
//
//	agent.HandoffTo(billing, agent.WithInputFilter(handoff.RemoveToolItems))
//
//	rc := &agent.RunConfig{HandoffInputFilter: handoff.Chain(
//		handoff.RemoveToolItems,
//		handoff.TokenBudget(tokenizer.ForModel("gpt-4o"), 4000),
//	)}
package handoff
