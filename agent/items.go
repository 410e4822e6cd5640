package agent

import (
	"encoding/json"

	"github.com/BaSui01/agentrun/types"
)

// ItemType discriminates conversation items.
type ItemType string

const (
	ItemUserMessage      ItemType = "user_message"
	ItemAssistantMessage ItemType = "assistant_message"
	ItemToolCall         ItemType = "tool_call"
	ItemToolCallOutput   ItemType = "tool_call_output"
	ItemHandoffCall      ItemType = "handoff_call"
	ItemHandoffOutput    ItemType = "handoff_output"
	ItemReasoning        ItemType = "reasoning"
	ItemToolApproval     ItemType = "tool_approval"
)

// Item is one entry of the conversation history. Which fields are set
// depends on Type:
//
//	user_message, assistant_message, reasoning: Content
//	tool_call, handoff_call:                    CallID, Name, Arguments
//	tool_call_output, handoff_output:           CallID, Name, Content
//	tool_approval:                              CallID, Name, Arguments
//
// Handoff outputs additionally record SourceAgent and TargetAgent.
type Item struct {
	Type        ItemType        `json:"type"`
	Content     string          `json:"content,omitempty"`
	CallID      string          `json:"call_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
	SourceAgent string          `json:"source_agent,omitempty"`
	TargetAgent string          `json:"target_agent,omitempty"`
}

// UserMessage builds a user message item.
func UserMessage(text string) Item {
	return Item{Type: ItemUserMessage, Content: text}
}

// AssistantMessage builds an assistant message item.
func AssistantMessage(text string) Item {
	return Item{Type: ItemAssistantMessage, Content: text}
}

// ReasoningItem builds a reasoning trace item.
func ReasoningItem(text string) Item {
	return Item{Type: ItemReasoning, Content: text}
}

// ToolCallItem builds a tool-call request item.
func ToolCallItem(call types.ToolCall) Item {
	return Item{Type: ItemToolCall, CallID: call.ID, Name: call.Name, Arguments: call.Arguments}
}

// ToolOutputItem builds a tool-call result item.
func ToolOutputItem(callID, name, output string) Item {
	return Item{Type: ItemToolCallOutput, CallID: callID, Name: name, Content: output}
}

// IsCall reports whether the item asks for an invocation.
func (it Item) IsCall() bool {
	return it.Type == ItemToolCall || it.Type == ItemHandoffCall
}

// IsOutput reports whether the item answers an invocation.
func (it Item) IsOutput() bool {
	return it.Type == ItemToolCallOutput || it.Type == ItemHandoffOutput
}

// ToolCall returns the call carried by a call item.
func (it Item) ToolCall() types.ToolCall {
	return types.ToolCall{ID: it.CallID, Name: it.Name, Arguments: it.Arguments}
}

// RunItem is an Item attributed to the agent that produced it.
type RunItem struct {
	Agent string `json:"agent"`
	Item  Item   `json:"item"`
}

// ItemsOf unwraps run items.
func ItemsOf(runItems []RunItem) []Item {
	out := make([]Item, len(runItems))
	for i, ri := range runItems {
		out[i] = ri.Item
	}
	return out
}

// ToMessages converts history into provider messages. Consecutive reasoning,
// assistant text and call items collapse into one assistant message; approval
// items are runtime bookkeeping and are not sent.
func ToMessages(items []Item) []types.Message {
	msgs := make([]types.Message, 0, len(items))
	open := -1 // index of the assistant message still accepting parts

	assistant := func() *types.Message {
		if open < 0 {
			msgs = append(msgs, types.Message{Role: types.RoleAssistant})
			open = len(msgs) - 1
		}
		return &msgs[open]
	}

	for _, it := range items {
		switch it.Type {
		case ItemUserMessage:
			msgs = append(msgs, types.Message{Role: types.RoleUser, Content: it.Content})
			open = -1
		case ItemReasoning:
			m := assistant()
			if m.Content != "" || len(m.ToolCalls) > 0 {
				open = -1
				m = assistant()
			}
			m.Reasoning = it.Content
		case ItemAssistantMessage:
			m := assistant()
			if m.Content != "" || len(m.ToolCalls) > 0 {
				open = -1
				m = assistant()
			}
			m.Content = it.Content
		case ItemToolCall, ItemHandoffCall:
			m := assistant()
			m.ToolCalls = append(m.ToolCalls, it.ToolCall())
		case ItemToolCallOutput, ItemHandoffOutput:
			msgs = append(msgs, types.Message{
				Role:       types.RoleTool,
				Content:    it.Content,
				Name:       it.Name,
				ToolCallID: it.CallID,
			})
			open = -1
		case ItemToolApproval:
		}
	}
	return msgs
}
