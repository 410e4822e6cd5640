package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/testutil/fixtures"
)

// stateDoc builds a minimal serialized state.
func stateDoc(runID string, status agent.RunStatus) []byte {
	return []byte(fmt.Sprintf(`{"$schemaVersion":"1","run_id":%q,"status":%q,"current_agent":"bot","current_turn":1,"max_turns":10,"original_input":[],"usage":{}}`, runID, status))
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

// stores returns every backend, each with a deterministic clock.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	ck := func() func() time.Time {
		c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		return c.now
	}

	mem := NewMemoryStore()
	mem.now = ck()

	file, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	file.now = ck()

	mr := miniredis.RunT(t)
	rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", 0)
	rs.now = ck()

	sqlStore, err := NewSQLStore(context.Background(), newSQLite(t))
	require.NoError(t, err)
	sqlStore.now = ck()

	return map[string]Store{"memory": mem, "file": file, "redis": rs, "sql": sqlStore}
}

func TestStores_CRUD(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Ping(ctx))

			first, err := s.Save(ctx, stateDoc("run-a", agent.StatusSuspended))
			require.NoError(t, err)
			assert.Equal(t, "run-a", first.RunID)
			assert.Equal(t, agent.StatusSuspended, first.Status)
			assert.Equal(t, "bot", first.CurrentAgent)
			assert.Equal(t, int64(1), first.Version)

			_, err = s.Save(ctx, stateDoc("run-b", agent.StatusCompleted))
			require.NoError(t, err)
			updated, err := s.Save(ctx, stateDoc("run-a", agent.StatusCompleted))
			require.NoError(t, err)
			assert.True(t, first.CreatedAt.Equal(updated.CreatedAt), "created_at survives updates")
			assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))
			assert.Equal(t, int64(2), updated.Version)

			loaded, err := s.Load(ctx, "run-a")
			require.NoError(t, err)
			assert.Equal(t, agent.StatusCompleted, loaded.Status)
			assert.JSONEq(t, string(stateDoc("run-a", agent.StatusCompleted)), string(loaded.State))

			all, err := s.List(ctx, ListFilter{})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "run-a", all[0].RunID, "most recently updated first")

			limited, err := s.List(ctx, ListFilter{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			suspended, err := s.List(ctx, ListFilter{Status: agent.StatusSuspended})
			require.NoError(t, err)
			assert.Empty(t, suspended)

			require.NoError(t, s.Delete(ctx, "run-b"))
			assert.ErrorIs(t, s.Delete(ctx, "run-b"), ErrNotFound)
			_, err = s.Load(ctx, "run-b")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStores_UpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Update(ctx, stateDoc("run-u", agent.StatusSuspended), 1)
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.Save(ctx, stateDoc("run-u", agent.StatusSuspended))
			require.NoError(t, err)

			// Two operators read the same version.
			mine, err := s.Load(ctx, "run-u")
			require.NoError(t, err)
			theirs, err := s.Load(ctx, "run-u")
			require.NoError(t, err)

			updated, err := s.Update(ctx, stateDoc("run-u", agent.StatusRunning), theirs.Version)
			require.NoError(t, err)
			assert.Equal(t, mine.Version+1, updated.Version)
			assert.True(t, mine.CreatedAt.Equal(updated.CreatedAt))

			_, err = s.Update(ctx, stateDoc("run-u", agent.StatusCompleted), mine.Version)
			assert.ErrorIs(t, err, ErrConflict)

			loaded, err := s.Load(ctx, "run-u")
			require.NoError(t, err)
			assert.Equal(t, agent.StatusRunning, loaded.Status)
			assert.Equal(t, updated.Version, loaded.Version)

			saved, err := s.Save(ctx, stateDoc("run-u", agent.StatusSuspended))
			require.NoError(t, err)
			assert.Equal(t, updated.Version+1, saved.Version)
			_, err = s.Update(ctx, stateDoc("run-u", agent.StatusRunning), updated.Version)
			assert.ErrorIs(t, err, ErrConflict, "a plain save also moves the version on")
		})
	}
}

func TestStores_ConcurrentUpdatesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			base, err := s.Save(ctx, stateDoc("run-c", agent.StatusSuspended))
			require.NoError(t, err)

			const writers = 8
			var wins, conflicts atomic.Int32
			var wg sync.WaitGroup
			for range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Update(ctx, stateDoc("run-c", agent.StatusRunning), base.Version)
					switch {
					case err == nil:
						wins.Add(1)
					case errors.Is(err, ErrConflict):
						conflicts.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
			assert.Equal(t, int32(writers-1), conflicts.Load())
			loaded, err := s.Load(ctx, "run-c")
			require.NoError(t, err)
			assert.Equal(t, base.Version+1, loaded.Version)
		})
	}
}

func TestStores_RejectInvalidInput(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(ctx, []byte(`{"$schemaVersion":"7"}`))
			assert.ErrorIs(t, err, ErrInvalidInput)
			_, err = s.Save(ctx, stateDoc("../escape", agent.StatusRunning))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	_, err := s.Save(context.Background(), stateDoc("x", agent.StatusRunning))
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrStoreClosed)
}

func TestRedisStore_TTLPrunesIndex(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", time.Minute)

	_, err := s.Save(ctx, stateDoc("short", agent.StatusSuspended))
	require.NoError(t, err)
	assert.True(t, mr.Exists("agentrun:run:short"))

	mr.FastForward(2 * time.Minute)
	all, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	members, err := mr.ZMembers("agentrun:runs")
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, StoreConfig{Type: StoreTypeMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(ctx, StoreConfig{Type: StoreTypeFile, BaseDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	mr := miniredis.RunT(t)
	s, err = NewStore(ctx, StoreConfig{Type: StoreTypeRedis, Redis: RedisStoreConfig{Addr: mr.Addr()}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewStore(ctx, StoreConfig{Type: StoreTypeDatabase}, nil)
	assert.Error(t, err)
	s, err = NewStore(ctx, StoreConfig{Type: StoreTypeDatabase}, newSQLite(t))
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)

	_, err = NewStore(ctx, StoreConfig{Type: "tape"}, nil)
	assert.Error(t, err)

	assert.Equal(t, StoreTypeMemory, StoreType("").OrDefault())
	assert.Equal(t, StoreTypeRedis, StoreTypeRedis.OrDefault())
}

func TestSaveAndLoadState_ResumesRun(t *testing.T) {
	ctx := context.Background()
	var deployed atomic.Int32
	a := fixtures.OpsAgent(&deployed)
	runner, result := fixtures.SuspendedRun(t, "run-42", a)

	store := NewMemoryStore()
	rec, err := SaveState(ctx, store, result.State)
	require.NoError(t, err)
	assert.Equal(t, agent.StatusSuspended, rec.Status)

	patched, err := agent.ApplyDecisions(rec.State, map[string]agent.ApprovalDecision{"c1": agent.DecisionApproved})
	require.NoError(t, err)
	_, err = store.Save(ctx, patched)
	require.NoError(t, err)

	st, err := LoadState(ctx, store, "run-42", a)
	require.NoError(t, err)
	resumed, err := runner.Run(ctx, a, st)
	require.NoError(t, err)
	assert.Equal(t, "shipped", resumed.FinalOutput)
	assert.Equal(t, int32(1), deployed.Load())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.State, &doc))
	assert.Equal(t, "run-42", doc["run_id"])
}
