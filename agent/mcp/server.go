package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/types"
)

// Transport names.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ClientName is reported to servers during initialization.
const ClientName = "agentrun"

// ErrNotConnected is returned when tools are used before Connect.
var ErrNotConnected = errors.New("mcp server not connected")

// ApprovalPolicy decides which tools of a server need approval.
type ApprovalPolicy struct {
	// Always requires approval for every tool.
	Always bool
	// Tools lists tool names that require approval.
	Tools []string
}

func (p ApprovalPolicy) requires(name string) bool {
	return p.Always || slices.Contains(p.Tools, name)
}

// Config describes one MCP server.
type Config struct {
	Name string
	// Transport defaults to stdio when Command is set, otherwise streamable-http.
	Transport string
	Command   string
	Args      []string
	Env       map[string]string
	URL       string
	// AllowedTools limits the exposed tools when non-empty.
	AllowedTools []string
	// CacheTools keeps the first tool listing until InvalidateToolsCache.
	CacheTools bool
	Approval   ApprovalPolicy
	Logger     *zap.Logger
}

// Server is a connection to one MCP server exposed as an agent.ToolSource.
type Server struct {
	cfg       Config
	newClient func() (*client.Client, error)
	logger    *zap.Logger

	mu     sync.RWMutex
	client *client.Client
	cached []mcpgo.Tool
}

// New validates cfg and returns an unconnected server.
func New(cfg Config) (*Server, error) {
	if cfg.Transport == "" {
		cfg.Transport = TransportStreamableHTTP
		if cfg.Command != "" {
			cfg.Transport = TransportStdio
		}
	}
	var factory func() (*client.Client, error)
	switch cfg.Transport {
	case TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp server %s: stdio transport needs a command", cfg.Name)
		}
		factory = func() (*client.Client, error) {
			return client.NewStdioMCPClient(cfg.Command, envList(cfg.Env), cfg.Args...)
		}
	case TransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp server %s: sse transport needs a url", cfg.Name)
		}
		factory = func() (*client.Client, error) { return client.NewSSEMCPClient(cfg.URL) }
	case TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp server %s: streamable-http transport needs a url", cfg.Name)
		}
		factory = func() (*client.Client, error) { return client.NewStreamableHttpClient(cfg.URL) }
	default:
		return nil, fmt.Errorf("mcp server %s: unknown transport %q", cfg.Name, cfg.Transport)
	}
	return newServer(cfg, factory), nil
}

// NewInProcess wraps an mcp-go server running in this process.
func NewInProcess(cfg Config, srv *server.MCPServer) *Server {
	return newServer(cfg, func() (*client.Client, error) { return client.NewInProcessClient(srv) })
}

func newServer(cfg Config, factory func() (*client.Client, error)) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		newClient: factory,
		logger:    logger.With(zap.String("component", "mcp"), zap.String("server", cfg.Name)),
	}
}

// Name returns the configured server name.
func (s *Server) Name() string { return s.cfg.Name }

// Connect starts the transport and performs the MCP handshake. Connecting
// an already connected server is a no-op.
func (s *Server) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	c, err := s.newClient()
	if err != nil {
		return fmt.Errorf("create mcp client %s: %w", s.cfg.Name, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("start mcp client %s: %w", s.cfg.Name, err)
	}

	req := mcpgo.InitializeRequest{}
	req.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpgo.Implementation{Name: ClientName, Version: "1.0.0"}
	info, err := c.Initialize(ctx, req)
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize mcp server %s: %w", s.cfg.Name, err)
	}

	s.client = c
	s.logger.Info("mcp server connected",
		zap.String("transport", s.cfg.Transport),
		zap.String("server_name", info.ServerInfo.Name),
		zap.String("protocol", info.ProtocolVersion))
	return nil
}

// Close terminates the connection and drops the tool cache.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.cached = nil
	return err
}

// InvalidateToolsCache forces the next ListTools to query the server.
func (s *Server) InvalidateToolsCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *Server) conn() (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.Name, ErrNotConnected)
	}
	return s.client, nil
}

// ListTools implements agent.ToolSource.
func (s *Server) ListTools(ctx context.Context, _ *agent.RunContext, _ *agent.Agent) ([]agent.Tool, error) {
	defs, err := s.listTools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]agent.Tool, 0, len(defs))
	for _, def := range defs {
		if len(s.cfg.AllowedTools) > 0 && !slices.Contains(s.cfg.AllowedTools, def.Name) {
			continue
		}
		tools = append(tools, &remoteTool{server: s, def: def, schema: inputSchema(def)})
	}
	return tools, nil
}

func (s *Server) listTools(ctx context.Context) ([]mcpgo.Tool, error) {
	if s.cfg.CacheTools {
		s.mu.RLock()
		cached := s.cached
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
	}

	c, err := s.conn()
	if err != nil {
		return nil, err
	}
	res, err := c.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools of %s: %w", s.cfg.Name, err)
	}
	s.logger.Debug("listed mcp tools", zap.Int("count", len(res.Tools)))

	if s.cfg.CacheTools {
		s.mu.Lock()
		s.cached = res.Tools
		s.mu.Unlock()
	}
	return res.Tools, nil
}

func (s *Server) call(ctx context.Context, name string, args json.RawMessage) (*mcpgo.CallToolResult, error) {
	c, err := s.conn()
	if err != nil {
		return nil, err
	}
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, &agent.ModelBehaviorError{Message: fmt.Sprintf("invalid arguments for tool %s", name), Cause: err}
		}
	}
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments
	return c.CallTool(ctx, req)
}

// remoteTool adapts one MCP tool to agent.Tool.
type remoteTool struct {
	server *Server
	def    mcpgo.Tool
	schema json.RawMessage
}

func (t *remoteTool) Definition() types.ToolSchema {
	return types.ToolSchema{
		Name:        t.def.Name,
		Description: t.def.Description,
		Parameters:  t.schema,
		Kind:        types.ToolKindFunction,
	}
}

func (t *remoteTool) NeedsApproval(context.Context, *agent.RunContext, json.RawMessage) (bool, error) {
	return t.server.cfg.Approval.requires(t.def.Name), nil
}

// Invoke calls the tool on the server. A result flagged as an error becomes
// a tool error carrying the server's text.
func (t *remoteTool) Invoke(ctx context.Context, _ *agent.RunContext, call types.ToolCall) (string, error) {
	res, err := t.server.call(ctx, t.def.Name, call.Arguments)
	if err != nil {
		return "", err
	}
	text, err := resultText(res)
	if err != nil {
		return "", err
	}
	if res.IsError {
		if text == "" {
			text = "unknown error"
		}
		return "", fmt.Errorf("mcp tool %s: %s", t.def.Name, text)
	}
	return text, nil
}

// resultText joins text content; results without text are returned as JSON.
func resultText(res *mcpgo.CallToolResult) (string, error) {
	var texts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcpgo.TextContent:
			texts = append(texts, tc.Text)
		case *mcpgo.TextContent:
			texts = append(texts, tc.Text)
		}
	}
	if len(texts) > 0 || len(res.Content) == 0 {
		return strings.Join(texts, "\n"), nil
	}
	data, err := json.Marshal(res.Content)
	if err != nil {
		return "", fmt.Errorf("encode mcp content: %w", err)
	}
	return string(data), nil
}

func inputSchema(def mcpgo.Tool) json.RawMessage {
	if len(def.RawInputSchema) > 0 {
		return def.RawInputSchema
	}
	data, err := json.Marshal(def.InputSchema)
	if err != nil || string(data) == "null" {
		return types.EmptyObjectSchema
	}
	return data
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}
