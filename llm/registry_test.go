package llm

import (
	"context"
	"testing"

	"github.com/BaSui01/agentrun/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProvider string

func (p namedProvider) Name() string { return string(p) }

func (p namedProvider) Completion(context.Context, *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Provider: string(p)}, nil
}

func (p namedProvider) Stream(context.Context, *ChatRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Type: StreamEventCompleted, Response: &ChatResponse{Provider: string(p)}}
	close(ch)
	return ch, nil
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Register("gpt-4o", namedProvider("exact"))
	r.RegisterPrefix("gpt-", namedProvider("short"))
	r.RegisterPrefix("gpt-4", namedProvider("long"))

	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o", "exact"},
		{"gpt-4.1", "long"},
		{"gpt-3.5", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, err := r.Resolve(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	_, err := r.Resolve("claude")
	require.Error(t, err)
	assert.Equal(t, types.ErrModelNotFound, types.GetErrorCode(err))

	r.SetFallback(namedProvider("fallback"))
	p, err := r.Resolve("claude")
	require.NoError(t, err)
	assert.Equal(t, "fallback", p.Name())
	assert.Equal(t, []string{"gpt-4o"}, r.Models())
}

func TestCollectStream(t *testing.T) {
	ch := make(chan StreamEvent, 4)
	ch <- StreamEvent{Type: StreamEventTextDelta, Delta: "he"}
	ch <- StreamEvent{Type: StreamEventTextDelta, Delta: "llo"}
	ch <- StreamEvent{Type: StreamEventCompleted, Response: &ChatResponse{Message: types.Message{Content: "hello"}}}
	close(ch)

	var deltas string
	resp, err := CollectStream(context.Background(), ch, func(ev StreamEvent) { deltas += ev.Delta })
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Message.Content)
	assert.Equal(t, "hello", deltas)
}

func TestCollectStream_ClosedEarly(t *testing.T) {
	ch := make(chan StreamEvent)
	close(ch)
	_, err := CollectStream(context.Background(), ch, nil)
	require.Error(t, err)
}
