package types

import "encoding/json"

// ToolKind distinguishes tools the runtime executes from tools the model platform executes.
type ToolKind string

const (
	ToolKindFunction ToolKind = "function"
	ToolKindHosted   ToolKind = "hosted"
)

// ToolSchema defines a tool's interface for LLM function calling.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
	Kind        ToolKind        `json:"kind,omitempty"`
	// Config is passed through verbatim for hosted tools.
	Config map[string]any `json:"config,omitempty"`
}

// IsHosted reports whether the tool runs on the model platform.
func (s ToolSchema) IsHosted() bool {
	return s.Kind == ToolKindHosted
}

// EmptyObjectSchema is the parameter schema for tools without arguments.
var EmptyObjectSchema = json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
