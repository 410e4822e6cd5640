package hosted

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agentrun/agent"
)

// Tool type names understood by providers.
const (
	TypeWebSearch       = "web_search"
	TypeFileSearch      = "file_search"
	TypeCodeInterpreter = "code_interpreter"
)

// WebSearchOptions configures WebSearch.
type WebSearchOptions struct {
	MaxResults int
	// ContextSize is "low", "medium" or "high".
	ContextSize    string
	AllowedDomains []string
}

// WebSearch lets the model search the web.
func WebSearch(opts WebSearchOptions) *agent.HostedTool {
	cfg := map[string]any{"type": TypeWebSearch}
	if opts.MaxResults > 0 {
		cfg["max_results"] = opts.MaxResults
	}
	if opts.ContextSize != "" {
		cfg["search_context_size"] = opts.ContextSize
	}
	if len(opts.AllowedDomains) > 0 {
		cfg["allowed_domains"] = slices.Clone(opts.AllowedDomains)
	}
	return &agent.HostedTool{ToolName: TypeWebSearch, Description: "Search the web for current information.", Config: cfg}
}

// FileSearch lets the model search the given vector stores.
func FileSearch(maxResults int, vectorStoreIDs ...string) (*agent.HostedTool, error) {
	if len(vectorStoreIDs) == 0 {
		return nil, fmt.Errorf("file search needs at least one vector store")
	}
	cfg := map[string]any{"type": TypeFileSearch, "vector_store_ids": slices.Clone(vectorStoreIDs)}
	if maxResults > 0 {
		cfg["max_num_results"] = maxResults
	}
	return &agent.HostedTool{ToolName: TypeFileSearch, Description: "Search uploaded files.", Config: cfg}, nil
}

// CodeInterpreter lets the model run code in a platform sandbox.
func CodeInterpreter(container string) *agent.HostedTool {
	if container == "" {
		container = "auto"
	}
	return &agent.HostedTool{
		ToolName:    TypeCodeInterpreter,
		Description: "Execute code in a sandbox.",
		Config:      map[string]any{"type": TypeCodeInterpreter, "container": container},
	}
}

// Registry holds named hosted tools shared between agents.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*agent.HostedTool
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]*agent.HostedTool),
		logger: logger.With(zap.String("component", "hosted_tools")),
	}
}

// Register adds or replaces t under its tool name.
func (r *Registry) Register(t *agent.HostedTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.ToolName] = t
	r.logger.Info("registered hosted tool", zap.String("name", t.ToolName))
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (*agent.HostedTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the named tools, ready for Agent.Tools. Unknown names are
// an error.
func (r *Registry) Tools(names ...string) ([]agent.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agent.Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("hosted tool %q not registered", name)
		}
		out = append(out, t)
	}
	return out, nil
}
