package handoff

import (
	"context"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/types"
)

// RemoveToolItems drops tool and handoff calls, their outputs, and approval
// items from every part of the history. Messages and reasoning are kept.
func RemoveToolItems(_ context.Context, data agent.HandoffInputData) (agent.HandoffInputData, error) {
	return agent.HandoffInputData{
		InputHistory:    keepItems(data.InputHistory, isConversational),
		PreHandoffItems: keepRunItems(data.PreHandoffItems, isConversational),
		NewItems:        keepRunItems(data.NewItems, isConversational),
	}, nil
}

// KeepLastItems keeps the n most recent items of the whole history.
func KeepLastItems(n int) agent.HandoffInputFilter {
	return func(_ context.Context, data agent.HandoffInputData) (agent.HandoffInputData, error) {
		total := len(data.InputHistory) + len(data.PreHandoffItems) + len(data.NewItems)
		return dropOldest(data, total-n), nil
	}
}

// TokenBudget drops the oldest items until the history fits budget tokens
// as counted by counter. The items of the current turn are never dropped.
func TokenBudget(counter types.TokenCounter, budget int) agent.HandoffInputFilter {
	return func(_ context.Context, data agent.HandoffInputData) (agent.HandoffInputData, error) {
		all := data.All()
		costs := make([]int, len(all))
		total := 0
		for i, it := range all {
			costs[i] = itemTokens(counter, it)
			total += costs[i]
		}
		droppable := len(data.InputHistory) + len(data.PreHandoffItems)
		drop := 0
		for drop < droppable && total > budget {
			total -= costs[drop]
			drop++
		}
		return dropOldest(data, drop), nil
	}
}

// Chain applies filters in order.
func Chain(filters ...agent.HandoffInputFilter) agent.HandoffInputFilter {
	return func(ctx context.Context, data agent.HandoffInputData) (agent.HandoffInputData, error) {
		var err error
		for _, f := range filters {
			if data, err = f(ctx, data); err != nil {
				return data, err
			}
		}
		return data, nil
	}
}

func isConversational(it agent.Item) bool {
	switch it.Type {
	case agent.ItemUserMessage, agent.ItemAssistantMessage, agent.ItemReasoning:
		return true
	}
	return false
}

func keepItems(items []agent.Item, keep func(agent.Item) bool) []agent.Item {
	out := make([]agent.Item, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func keepRunItems(items []agent.RunItem, keep func(agent.Item) bool) []agent.RunItem {
	out := make([]agent.RunItem, 0, len(items))
	for _, ri := range items {
		if keep(ri.Item) {
			out = append(out, ri)
		}
	}
	return out
}

// dropOldest removes n items from the front of the combined history.
func dropOldest(data agent.HandoffInputData, n int) agent.HandoffInputData {
	if n <= 0 {
		return data
	}
	cut := min(n, len(data.InputHistory))
	data.InputHistory = data.InputHistory[cut:]
	n -= cut

	cut = min(n, len(data.PreHandoffItems))
	data.PreHandoffItems = data.PreHandoffItems[cut:]
	n -= cut

	cut = min(n, len(data.NewItems))
	data.NewItems = data.NewItems[cut:]
	return data
}

func itemTokens(counter types.TokenCounter, it agent.Item) int {
	return counter.CountTokens(it.Content) + counter.CountTokens(it.Name) + counter.CountTokens(string(it.Arguments))
}
