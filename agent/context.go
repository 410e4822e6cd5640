package agent

import (
	"sync"

	"github.com/BaSui01/agentrun/types"
)

// RunContext carries the caller's context value through a run. It is handed
// by pointer to every tool, guardrail, hook and dynamic instruction, and is
// never sent to the model.
type RunContext struct {
	// Value is the caller-supplied context value.
	Value any

	runID  string
	runner *Runner

	mu    sync.Mutex
	usage types.TokenUsage
}

// NewRunContext wraps value. Runs create their own; this is for tests and
// for invoking tools outside a run.
func NewRunContext(value any) *RunContext {
	return &RunContext{Value: value}
}

// RunID returns the id of the run this context belongs to.
func (rc *RunContext) RunID() string {
	return rc.runID
}

// Usage returns the aggregated token usage so far.
func (rc *RunContext) Usage() types.TokenUsage {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.usage
}

func (rc *RunContext) addUsage(u types.TokenUsage) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.usage.Add(u)
}

// ContextValue returns the context value as T.
func ContextValue[T any](rc *RunContext) (T, bool) {
	var zero T
	if rc == nil {
		return zero, false
	}
	v, ok := rc.Value.(T)
	return v, ok
}
