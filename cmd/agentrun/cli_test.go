package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/agent/persistence"
	"github.com/BaSui01/agentrun/testutil/fixtures"
)

func TestRun_Usage(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	assert.ErrorIs(t, run(ctx, nil, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"launch"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"approve", "run-1"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"inspect"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"runs", "--limit", "many"}, &out), errUsage)

	require.NoError(t, run(ctx, []string{"version"}, &out))
	assert.Contains(t, out.String(), "agentrun dev")
}

func TestDecide_StateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, fixtures.SuspendedState(t, "run-f"), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"reject", "--call", "c1", "--file", path}, &out))

	var summary agent.StateSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "run-f", summary.RunID)
	assert.Equal(t, agent.DecisionRejected, summary.Approvals["c1"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"c1":"rejected"`)

	err = run(context.Background(), []string{"approve", "--call", "c9", "--file", path}, &out)
	assert.Equal(t, agent.KindUserError, agent.KindOf(err))
}

func TestCommands_FileStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTRUN_STORE_TYPE", "file")
	t.Setenv("AGENTRUN_STORE_BASE_DIR", dir)

	ctx := context.Background()
	store, err := persistence.NewFileStore(dir)
	require.NoError(t, err)
	_, err = store.Save(ctx, fixtures.SuspendedState(t, "run-s"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"runs", "--status", "suspended"}, &out))
	assert.Contains(t, out.String(), "run-s\tsuspended\tops")

	out.Reset()
	require.NoError(t, run(ctx, []string{"inspect", "run-s"}, &out))
	assert.Contains(t, out.String(), `"tool_name": "deploy"`)

	out.Reset()
	require.NoError(t, run(ctx, []string{"approve", "--call", "c1", "run-s"}, &out))

	rec, err := store.Load(ctx, "run-s")
	require.NoError(t, err)
	summary, err := agent.InspectState(rec.State)
	require.NoError(t, err)
	assert.Equal(t, agent.DecisionApproved, summary.Approvals["c1"])

	err = run(ctx, []string{"inspect", "missing"}, &out)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestHealthCommand(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ready", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"health", "--addr", healthy.URL}, &out))
	assert.Equal(t, "OK\n", out.String())
	assert.Error(t, run(context.Background(), []string{"health", "--addr", unhealthy.URL}, &out))
}
