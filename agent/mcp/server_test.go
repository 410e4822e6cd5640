package mcp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/testutil/mocks"
)

// newTestServer serves "shout" and "fail", counting shout calls.
func newTestServer(calls *atomic.Int32) *server.MCPServer {
	s := server.NewMCPServer("test-server", "0.1.0", server.WithToolCapabilities(true))
	s.AddTool(mcpgo.NewTool("shout",
		mcpgo.WithDescription("upper-cases text"),
		mcpgo.WithString("text", mcpgo.Required(), mcpgo.Description("text to shout")),
	), func(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		calls.Add(1)
		text, err := req.RequireString("text")
		if err != nil {
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return mcpgo.NewToolResultText(text + "!"), nil
	})
	s.AddTool(mcpgo.NewTool("fail", mcpgo.WithDescription("always fails")),
		func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			return mcpgo.NewToolResultError("disk on fire"), nil
		})
	return s
}

func connected(t *testing.T, cfg Config, calls *atomic.Int32) *Server {
	t.Helper()
	srv := NewInProcess(cfg, newTestServer(calls))
	require.NoError(t, srv.Connect(context.Background()))
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Name: "x", Transport: TransportStdio})
	assert.Error(t, err)
	_, err = New(Config{Name: "x", Transport: "carrier-pigeon"})
	assert.Error(t, err)
	_, err = New(Config{Name: "x"})
	assert.Error(t, err)

	srv, err := New(Config{Name: "x", Command: "some-binary"})
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, srv.cfg.Transport)
}

func TestServer_NotConnected(t *testing.T) {
	var calls atomic.Int32
	srv := NewInProcess(Config{Name: "idle"}, newTestServer(&calls))
	_, err := srv.ListTools(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestServer_ListTools(t *testing.T) {
	var calls atomic.Int32
	srv := connected(t, Config{Name: "t"}, &calls)

	tools, err := srv.ListTools(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	byName := map[string]agent.Tool{}
	for _, tool := range tools {
		byName[tool.Definition().Name] = tool
	}
	require.Contains(t, byName, "shout")
	def := byName["shout"].Definition()
	assert.Equal(t, "upper-cases text", def.Description)
	assert.Contains(t, string(def.Parameters), `"text"`)
}

func TestServer_AllowedToolsAndApproval(t *testing.T) {
	var calls atomic.Int32
	srv := connected(t, Config{
		Name:         "t",
		AllowedTools: []string{"shout"},
		Approval:     ApprovalPolicy{Tools: []string{"shout"}},
	}, &calls)

	tools, err := srv.ListTools(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	need, err := tools[0].NeedsApproval(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, need)
}

func TestServer_CacheTools(t *testing.T) {
	var calls atomic.Int32
	mcpSrv := newTestServer(&calls)
	srv := NewInProcess(Config{Name: "t", CacheTools: true}, mcpSrv)
	require.NoError(t, srv.Connect(context.Background()))
	defer srv.Close()

	first, err := srv.ListTools(context.Background(), nil, nil)
	require.NoError(t, err)
	mcpSrv.AddTool(mcpgo.NewTool("late"), func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return mcpgo.NewToolResultText("ok"), nil
	})

	cached, err := srv.ListTools(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, cached, len(first))

	srv.InvalidateToolsCache()
	fresh, err := srv.ListTools(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, fresh, len(first)+1)
}

func TestServer_InRun(t *testing.T) {
	var calls atomic.Int32
	srv := connected(t, Config{Name: "t"}, &calls)

	p := mocks.NewProvider().
		CallTools(
			mocks.ToolCall("c1", "shout", `{"text":"hello"}`),
			mocks.ToolCall("c2", "fail", `{}`),
		).
		Reply("done")
	a := &agent.Agent{Name: "caller", ToolSources: []agent.ToolSource{srv}}
	runner := agent.NewRunner(agent.Config{Resolver: llm.Static(p), DefaultModel: "m"})

	result, err := runner.Run(context.Background(), a, agent.Text("go"))
	require.NoError(t, err)
	assert.Equal(t, "done", result.FinalOutput)
	assert.Equal(t, int32(1), calls.Load())

	var outputs []string
	for _, ri := range result.NewItems {
		if ri.Item.Type == agent.ItemToolCallOutput {
			outputs = append(outputs, ri.Item.Content)
		}
	}
	require.Len(t, outputs, 2)
	assert.Equal(t, "hello!", outputs[0])
	assert.Contains(t, outputs[1], "disk on fire")
}
