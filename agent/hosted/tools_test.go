package hosted

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/testutil/mocks"
	"github.com/BaSui01/agentrun/types"
)

func TestWebSearch(t *testing.T) {
	def := WebSearch(WebSearchOptions{MaxResults: 5, AllowedDomains: []string{"go.dev"}}).Definition()
	assert.Equal(t, TypeWebSearch, def.Name)
	assert.Equal(t, types.ToolKindHosted, def.Kind)
	assert.Equal(t, 5, def.Config["max_results"])
	assert.Equal(t, []string{"go.dev"}, def.Config["allowed_domains"])
	assert.NotContains(t, def.Config, "search_context_size")
}

func TestFileSearch(t *testing.T) {
	_, err := FileSearch(3)
	assert.Error(t, err)

	fs, err := FileSearch(3, "vs_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vs_1"}, fs.Config["vector_store_ids"])
	assert.Equal(t, 3, fs.Config["max_num_results"])
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(WebSearch(WebSearchOptions{}))
	r.Register(CodeInterpreter(""))

	got, ok := r.Get(TypeCodeInterpreter)
	require.True(t, ok)
	assert.Equal(t, "auto", got.Config["container"])

	tools, err := r.Tools(TypeWebSearch, TypeCodeInterpreter)
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	_, err = r.Tools("nope")
	assert.Error(t, err)
}

func TestHostedTools_AdvertisedNotExecuted(t *testing.T) {
	p := mocks.NewProvider().Reply("searched")
	a := &agent.Agent{Name: "researcher", Tools: []agent.Tool{WebSearch(WebSearchOptions{})}}
	runner := agent.NewRunner(agent.Config{Resolver: llm.Static(p), DefaultModel: "m"})

	result, err := runner.Run(context.Background(), a, agent.Text("news?"))
	require.NoError(t, err)
	assert.Equal(t, "searched", result.FinalOutput)
	require.Len(t, p.LastRequest().Tools, 1)
	assert.True(t, p.LastRequest().Tools[0].IsHosted())
}
