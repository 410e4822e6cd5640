package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestModelSettings_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		base     ModelSettings
		override ModelSettings
		want     ModelSettings
	}{
		{
			name:     "empty override keeps base",
			base:     ModelSettings{Temperature: Float32Ptr(0.2), MaxTokens: IntPtr(100)},
			override: ModelSettings{},
			want:     ModelSettings{Temperature: Float32Ptr(0.2), MaxTokens: IntPtr(100)},
		},
		{
			name:     "override wins field by field",
			base:     ModelSettings{Temperature: Float32Ptr(0.2), MaxTokens: IntPtr(100)},
			override: ModelSettings{Temperature: Float32Ptr(0.9)},
			want:     ModelSettings{Temperature: Float32Ptr(0.9), MaxTokens: IntPtr(100)},
		},
		{
			name:     "metadata merges",
			base:     ModelSettings{Metadata: map[string]string{"a": "1", "b": "1"}},
			override: ModelSettings{Metadata: map[string]string{"b": "2"}},
			want:     ModelSettings{Metadata: map[string]string{"a": "1", "b": "2"}},
		},
		{
			name:     "tool choice override",
			base:     ModelSettings{ToolChoice: StringPtr(ToolChoiceRequired)},
			override: ModelSettings{ToolChoice: StringPtr(ToolChoiceAuto)},
			want:     ModelSettings{ToolChoice: StringPtr(ToolChoiceAuto)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.base.Resolve(tt.override))
		})
	}
}

func TestMergeSettings_Precedence(t *testing.T) {
	provider := ModelSettings{Temperature: Float32Ptr(1.0), TopP: Float32Ptr(1.0), MaxTokens: IntPtr(4096)}
	agentLevel := ModelSettings{Temperature: Float32Ptr(0.5), TopP: Float32Ptr(0.8)}
	runLevel := ModelSettings{Temperature: Float32Ptr(0.1)}

	got := MergeSettings(provider, agentLevel, runLevel)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, float32(0.1), *got.Temperature)
	assert.Equal(t, float32(0.8), *got.TopP)
	assert.Equal(t, 4096, *got.MaxTokens)
}

func TestModelSettings_ResolveDoesNotAlias(t *testing.T) {
	base := ModelSettings{Stop: []string{"a"}, Metadata: map[string]string{"k": "v"}}
	out := base.Resolve(ModelSettings{})
	out.Stop[0] = "changed"
	out.Metadata["k"] = "changed"
	assert.Equal(t, "a", base.Stop[0])
	assert.Equal(t, "v", base.Metadata["k"])
}

func TestMergeSettings_HighestSetLayerWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "layers")
		layers := make([]ModelSettings, n)
		var want *int
		for i := range layers {
			if rapid.Bool().Draw(t, "set") {
				v := rapid.IntRange(1, 10000).Draw(t, "max_tokens")
				layers[i].MaxTokens = IntPtr(v)
				want = IntPtr(v)
			}
		}
		got := MergeSettings(layers...)
		if want == nil {
			if got.MaxTokens != nil {
				t.Fatalf("expected unset, got %d", *got.MaxTokens)
			}
			return
		}
		if got.MaxTokens == nil || *got.MaxTokens != *want {
			t.Fatalf("expected %d, got %v", *want, got.MaxTokens)
		}
	})
}
