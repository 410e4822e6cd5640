package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/types"
)

// RunObserver records run metrics from runner hooks. One observer may be
// shared by concurrent runs.
type RunObserver struct {
	agent.NoopRunHooks
	c   *Collector
	now func() time.Time

	mu       sync.Mutex
	runStart map[*agent.RunContext]time.Time
	llmStart map[*agent.RunContext]time.Time
}

// Observer returns a RunHooks feeding c.
func (c *Collector) Observer() *RunObserver {
	return &RunObserver{
		c:        c,
		now:      time.Now,
		runStart: make(map[*agent.RunContext]time.Time),
		llmStart: make(map[*agent.RunContext]time.Time),
	}
}

func (o *RunObserver) OnAgentStart(_ context.Context, rc *agent.RunContext, a *agent.Agent) {
	o.mu.Lock()
	if _, ok := o.runStart[rc]; !ok {
		o.runStart[rc] = o.now()
		o.c.runsInFlight.Inc()
	}
	o.mu.Unlock()
	o.c.agentStarts.WithLabelValues(a.Name).Inc()
}

func (o *RunObserver) OnHandoff(_ context.Context, _ *agent.RunContext, from, to *agent.Agent) {
	o.c.handoffsTotal.WithLabelValues(from.Name, to.Name).Inc()
}

func (o *RunObserver) OnToolEnd(_ context.Context, _ *agent.RunContext, a *agent.Agent, call types.ToolCall, _ string) {
	o.c.toolCalls.WithLabelValues(a.Name, call.Name).Inc()
}

func (o *RunObserver) OnLLMStart(_ context.Context, rc *agent.RunContext, _ *agent.Agent, _ *llm.ChatRequest) {
	o.mu.Lock()
	o.llmStart[rc] = o.now()
	o.mu.Unlock()
}

func (o *RunObserver) OnLLMEnd(_ context.Context, rc *agent.RunContext, _ *agent.Agent, resp *llm.ChatResponse) {
	o.mu.Lock()
	start, ok := o.llmStart[rc]
	delete(o.llmStart, rc)
	o.mu.Unlock()

	model := resp.Model
	o.c.llmRequestsTotal.WithLabelValues(model, "ok").Inc()
	if ok {
		o.c.llmRequestDuration.WithLabelValues(model).Observe(o.now().Sub(start).Seconds())
	}
	o.c.llmTokensUsed.WithLabelValues(model, "prompt").Add(float64(resp.Usage.PromptTokens))
	o.c.llmTokensUsed.WithLabelValues(model, "completion").Add(float64(resp.Usage.CompletionTokens))
}

func (o *RunObserver) OnRunEnd(_ context.Context, rc *agent.RunContext, result *agent.RunResult, err error) {
	o.mu.Lock()
	start, ok := o.runStart[rc]
	delete(o.runStart, rc)
	_, failedCall := o.llmStart[rc]
	delete(o.llmStart, rc)
	o.mu.Unlock()

	status := runStatus(result, err)
	if failedCall && agent.KindOf(err) == agent.KindModelCall {
		o.c.llmRequestsTotal.WithLabelValues("unknown", "error").Inc()
	}
	o.c.runsTotal.WithLabelValues(status).Inc()
	if ok {
		o.c.runsInFlight.Dec()
		o.c.runDuration.WithLabelValues(status).Observe(o.now().Sub(start).Seconds())
	}
}

func runStatus(result *agent.RunResult, err error) string {
	switch {
	case err != nil:
		if kind := agent.KindOf(err); kind != "" {
			return string(kind)
		}
		return "error"
	case result != nil && result.Interrupted():
		return string(agent.StatusSuspended)
	default:
		return string(agent.StatusCompleted)
	}
}
