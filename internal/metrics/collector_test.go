package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/agent/persistence"
	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/testutil/mocks"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("test", reg, zap.NewNop()), reg
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("GET", "/v1/runs", 200, 100*time.Millisecond)
	c.RecordHTTPRequest("GET", "/v1/runs", 204, 50*time.Millisecond)
	c.RecordHTTPRequest("POST", "/v1/runs/{id}/approvals", 503, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/v1/runs", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/v1/runs/{id}/approvals", "5xx")))
}

func TestCollector_StoreAndApprovals(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordStoreOperation("redis", "save", nil, time.Millisecond)
	c.RecordStoreOperation("redis", "load", errors.New("down"), time.Millisecond)
	c.RecordApproval("approved")
	c.RecordApproval("approved")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOperations.WithLabelValues("redis", "save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOperations.WithLabelValues("redis", "load", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.approvalsTotal.WithLabelValues("approved")))
}

func TestStatusCode(t *testing.T) {
	tests := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 500: "5xx", 100: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, statusCode(code))
	}
}

func TestRunObserver_RecordsRun(t *testing.T) {
	c, _ := newTestCollector(t)

	echo := agent.MustFunctionTool("echo", "", func(context.Context, *agent.RunContext, struct{}) (any, error) {
		return "ok", nil
	})
	specialist := &agent.Agent{Name: "specialist", Tools: []agent.Tool{echo}}
	triage := &agent.Agent{Name: "triage", Handoffs: []*agent.Handoff{agent.HandoffTo(specialist)}}

	p := mocks.NewProvider().
		CallTools(mocks.ToolCall("h1", "transfer_to_specialist", `{}`)).
		CallTools(mocks.ToolCall("c1", "echo", `{}`)).
		Reply("all done")
	runner := agent.NewRunner(agent.Config{Resolver: llm.Static(p), DefaultModel: "m1"})

	_, err := runner.Run(context.Background(), triage, agent.Text("help"), agent.WithHooks(c.Observer()))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.runsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.handoffsTotal.WithLabelValues("triage", "specialist")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolCalls.WithLabelValues("specialist", "echo")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("m1", "ok")))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("m1", "prompt")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))
}

func TestRunObserver_RecordsFailure(t *testing.T) {
	c, _ := newTestCollector(t)
	p := mocks.NewProvider().Fail(errors.New("upstream down"))
	runner := agent.NewRunner(agent.Config{Resolver: llm.Static(p), DefaultModel: "m1"})

	_, err := runner.Run(context.Background(), &agent.Agent{Name: "a"}, agent.Text("x"), agent.WithHooks(c.Observer()))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues(string(agent.KindModelCall))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("unknown", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.runsInFlight))
}

func TestRunObserver_Concurrent(t *testing.T) {
	c, _ := newTestCollector(t)
	obs := c.Observer()
	runner := agent.NewRunner(agent.Config{Resolver: llm.Static(mocks.NewProvider().Reply("hi")), DefaultModel: "m"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = runner.Run(context.Background(), &agent.Agent{Name: "a"}, agent.Text("x"), agent.WithHooks(obs))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("completed")))
	assert.Empty(t, obs.runStart)
	assert.Empty(t, obs.llmStart)
}

func TestHandler(t *testing.T) {
	c, reg := newTestCollector(t)
	c.RecordApproval("rejected")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_approval_decisions_total{decision="rejected"} 1`)
}

func TestInstrumentStore(t *testing.T) {
	c, _ := newTestCollector(t)
	s := c.InstrumentStore(persistence.NewMemoryStore(), "memory")

	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = s.List(context.Background(), persistence.ListFilter{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Delete(context.Background(), "missing"), persistence.ErrNotFound)
	state := []byte(`{"$schemaVersion":"1","run_id":"missing","status":"suspended","current_agent":"bot","current_turn":1,"max_turns":10,"original_input":[],"usage":{}}`)
	_, err = s.Update(context.Background(), state, 1)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOperations.WithLabelValues("memory", "load", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOperations.WithLabelValues("memory", "list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOperations.WithLabelValues("memory", "delete", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOperations.WithLabelValues("memory", "update", "error")))
	assert.NoError(t, s.Ping(context.Background()))
}
