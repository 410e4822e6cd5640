package llm

// Tool choice values with special meaning. Any other value names a tool.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceNone     = "none"
)

// ModelSettings holds model tuning parameters. Nil fields are unset and fall
// through to the next layer when settings are merged.
type ModelSettings struct {
	Temperature       *float32          `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP              *float32          `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	MaxTokens         *int              `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Stop              []string          `json:"stop,omitempty" yaml:"stop,omitempty"`
	ToolChoice        *string           `json:"tool_choice,omitempty" yaml:"tool_choice,omitempty"`
	ParallelToolCalls *bool             `json:"parallel_tool_calls,omitempty" yaml:"parallel_tool_calls,omitempty"`
	Store             *bool             `json:"store,omitempty" yaml:"store,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Resolve returns s overlaid with override: every field set in override wins.
// Metadata maps are merged key by key with override winning.
func (s ModelSettings) Resolve(override ModelSettings) ModelSettings {
	out := s
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.MaxTokens != nil {
		out.MaxTokens = override.MaxTokens
	}
	if override.Stop != nil {
		out.Stop = append([]string(nil), override.Stop...)
	} else if s.Stop != nil {
		out.Stop = append([]string(nil), s.Stop...)
	}
	if override.ToolChoice != nil {
		out.ToolChoice = override.ToolChoice
	}
	if override.ParallelToolCalls != nil {
		out.ParallelToolCalls = override.ParallelToolCalls
	}
	if override.Store != nil {
		out.Store = override.Store
	}
	if len(s.Metadata) > 0 || len(override.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(s.Metadata)+len(override.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
		for k, v := range override.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// MergeSettings layers settings from lowest to highest precedence.
func MergeSettings(layers ...ModelSettings) ModelSettings {
	var out ModelSettings
	for _, l := range layers {
		out = out.Resolve(l)
	}
	return out
}

// ToolChoiceValue returns the tool choice or "" when unset.
func (s ModelSettings) ToolChoiceValue() string {
	if s.ToolChoice == nil {
		return ""
	}
	return *s.ToolChoice
}

// Float32Ptr returns a pointer to the given float32 value.
func Float32Ptr(v float32) *float32 { return &v }

// IntPtr returns a pointer to the given int value.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to the given string value.
func StringPtr(v string) *string { return &v }

// BoolPtr returns a pointer to the given bool value.
func BoolPtr(v bool) *bool { return &v }
