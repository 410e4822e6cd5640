// Package fixtures builds agents and runs shared by the service tests.
package fixtures

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/testutil"
	"github.com/BaSui01/agentrun/testutil/mocks"
)

// DeployCallID is the id of the pending call in every suspended fixture run.
const DeployCallID = "c1"

// OpsAgent returns agent "ops" with one approval-gated tool, "deploy".
// Each deploy execution increments deployed when it is non-nil.
func OpsAgent(deployed *atomic.Int32) *agent.Agent {
	deploy := agent.MustFunctionTool("deploy", "deploys", func(context.Context, *agent.RunContext, struct{}) (any, error) {
		if deployed != nil {
			deployed.Add(1)
		}
		return "ok", nil
	}, agent.WithApproval(true))
	return &agent.Agent{Name: "ops", Tools: []agent.Tool{deploy}}
}

// OpsRunner returns a runner whose model calls deploy once and then replies
// "shipped".
func OpsRunner() *agent.Runner {
	p := mocks.NewProvider().CallTools(mocks.ToolCall(DeployCallID, "deploy", `{}`)).Reply("shipped")
	return agent.NewRunner(agent.Config{Resolver: llm.Static(p), DefaultModel: "m"})
}

// SuspendedRun runs a against OpsRunner until it stops on the deploy
// approval.
func SuspendedRun(t *testing.T, runID string, a *agent.Agent) (*agent.Runner, *agent.RunResult) {
	t.Helper()
	runner := OpsRunner()
	result, err := runner.Run(testutil.TestContext(t), a, agent.Text("ship it"), agent.WithRunID(runID))
	require.NoError(t, err)
	require.True(t, result.Interrupted())
	return runner, result
}

// SuspendedState returns the serialized state of a run suspended on
// DeployCallID.
func SuspendedState(t *testing.T, runID string) []byte {
	t.Helper()
	_, result := SuspendedRun(t, runID, OpsAgent(nil))
	data, err := json.Marshal(result.State)
	require.NoError(t, err)
	return data
}
