package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/testutil/mocks"
	"github.com/BaSui01/agentrun/types"
)

func sample() agent.HandoffInputData {
	call := types.ToolCall{ID: "c1", Name: "lookup", Arguments: json.RawMessage(`{}`)}
	return agent.HandoffInputData{
		InputHistory: []agent.Item{agent.UserMessage("hello"), agent.AssistantMessage("earlier")},
		PreHandoffItems: []agent.RunItem{
			{Agent: "triage", Item: agent.ToolCallItem(call)},
			{Agent: "triage", Item: agent.ToolOutputItem("c1", "lookup", "result")},
			{Agent: "triage", Item: agent.ReasoningItem("hmm")},
		},
		NewItems: []agent.RunItem{
			{Agent: "triage", Item: agent.Item{Type: agent.ItemHandoffCall, CallID: "h1", Name: "transfer_to_billing"}},
			{Agent: "triage", Item: agent.Item{Type: agent.ItemHandoffOutput, CallID: "h1", Name: "transfer_to_billing", Content: `{"assistant":"billing"}`}},
		},
	}
}

func TestRemoveToolItems(t *testing.T) {
	out, err := RemoveToolItems(context.Background(), sample())
	require.NoError(t, err)
	assert.Len(t, out.InputHistory, 2)
	require.Len(t, out.PreHandoffItems, 1)
	assert.Equal(t, agent.ItemReasoning, out.PreHandoffItems[0].Item.Type)
	assert.Empty(t, out.NewItems)
}

func TestKeepLastItems(t *testing.T) {
	out, err := KeepLastItems(3)(context.Background(), sample())
	require.NoError(t, err)
	assert.Empty(t, out.InputHistory)
	assert.Len(t, out.PreHandoffItems, 1)
	assert.Len(t, out.NewItems, 2)

	out, err = KeepLastItems(100)(context.Background(), sample())
	require.NoError(t, err)
	assert.Len(t, out.All(), 7)
}

func TestTokenBudget(t *testing.T) {
	data := agent.HandoffInputData{
		InputHistory: []agent.Item{agent.UserMessage(strings.Repeat("a", 40)), agent.UserMessage(strings.Repeat("b", 40))},
		NewItems:     []agent.RunItem{{Agent: "x", Item: agent.AssistantMessage(strings.Repeat("c", 400))}},
	}

	out, err := TokenBudget(types.EstimateCounter{}, 110)(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, out.InputHistory, 1)
	assert.Equal(t, strings.Repeat("b", 40), out.InputHistory[0].Content)

	out, err = TokenBudget(types.EstimateCounter{}, 1)(context.Background(), data)
	require.NoError(t, err)
	assert.Empty(t, out.InputHistory)
	assert.Len(t, out.NewItems, 1)
}

func TestChain(t *testing.T) {
	out, err := Chain(RemoveToolItems, KeepLastItems(2))(context.Background(), sample())
	require.NoError(t, err)
	all := out.All()
	require.Len(t, all, 2)
	assert.Equal(t, "earlier", all[0].Content)
	assert.Equal(t, "hmm", all[1].Content)

	boom := errors.New("boom")
	_, err = Chain(func(context.Context, agent.HandoffInputData) (agent.HandoffInputData, error) {
		return agent.HandoffInputData{}, boom
	}, KeepLastItems(1))(context.Background(), sample())
	assert.ErrorIs(t, err, boom)
}

func TestRemoveToolItems_InRun(t *testing.T) {
	billing := &agent.Agent{Name: "billing"}
	triage := &agent.Agent{
		Name:     "triage",
		Handoffs: []*agent.Handoff{agent.HandoffTo(billing, agent.WithInputFilter(RemoveToolItems))},
	}
	p := mocks.NewProvider().
		CallTools(mocks.ToolCall("h1", "transfer_to_billing", `{}`)).
		Reply("billing here")
	runner := agent.NewRunner(agent.Config{Resolver: llm.Static(p), DefaultModel: "m"})

	result, err := runner.Run(context.Background(), triage, agent.Text("refund please"))
	require.NoError(t, err)
	assert.Equal(t, "billing here", result.FinalOutput)
	assert.Same(t, billing, result.LastAgent)

	second := p.Requests()[1]
	require.Len(t, second.Messages, 1)
	assert.Equal(t, "refund please", second.Messages[0].Content)
}

// Property: KeepLastItems never returns more than n items and keeps the tail.
func TestProperty_KeepLastItems(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		texts := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,5}`)).Draw(rt, "texts")
		split := rapid.IntRange(0, len(texts)).Draw(rt, "split")
		n := rapid.IntRange(0, 10).Draw(rt, "n")

		data := agent.HandoffInputData{}
		for i, s := range texts {
			if i < split {
				data.InputHistory = append(data.InputHistory, agent.UserMessage(s))
			} else {
				data.PreHandoffItems = append(data.PreHandoffItems, agent.RunItem{Agent: "a", Item: agent.AssistantMessage(s)})
			}
		}

		out, err := KeepLastItems(n)(context.Background(), data)
		require.NoError(rt, err)
		all, kept := data.All(), out.All()
		assert.Equal(rt, min(n, len(all)), len(kept))
		assert.Equal(rt, all[len(all)-len(kept):], kept)
	})
}
