// Package persistence stores serialized run states so suspended runs can be
// listed, approved and resumed across process restarts.
//
// Supported backends:
//   - memory: development and tests
//   - file: single-node deployments, one JSON file per run
//   - redis: distributed deployments, with optional expiry
//   - database: any gorm dialect (postgres, mysql, sqlite)
package persistence

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/BaSui01/agentrun/agent"
)

// Common errors
var (
	ErrNotFound     = errors.New("run state not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("run state was modified concurrently")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDatabase StoreType = "database"
)

// OrDefault returns t, or memory when t is empty.
func (t StoreType) OrDefault() StoreType {
	if t == "" {
		return StoreTypeMemory
	}
	return t
}

// Record is one stored run state with the metadata needed to list it.
// Version starts at 1 and grows by one on every write.
type Record struct {
	RunID        string          `json:"run_id"`
	Status       agent.RunStatus `json:"status"`
	CurrentAgent string          `json:"current_agent"`
	Version      int64           `json:"version"`
	State        json.RawMessage `json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status agent.RunStatus
	Limit  int
}

// Store persists serialized run states keyed by run id.
type Store interface {
	// Save inserts or replaces the state. Metadata is read from the document.
	Save(ctx context.Context, state []byte) (*Record, error)
	// Update replaces an existing state only if its stored version still
	// equals version. It returns ErrConflict otherwise.
	Update(ctx context.Context, state []byte, version int64) (*Record, error)
	Load(ctx context.Context, runID string) (*Record, error)
	// List returns records, most recently updated first.
	List(ctx context.Context, filter ListFilter) ([]*Record, error)
	Delete(ctx context.Context, runID string) error
	Ping(ctx context.Context) error
	Close() error
}

// SaveState serializes st and saves it.
func SaveState(ctx context.Context, s Store, st *agent.RunState) (*Record, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode run state: %w", err)
	}
	return s.Save(ctx, data)
}

// LoadState loads a run and binds it to the agent graph rooted at root.
func LoadState(ctx context.Context, s Store, runID string, root *agent.Agent) (*agent.RunState, error) {
	rec, err := s.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return agent.UnmarshalRunState(rec.State, root)
}

// newRecord validates a serialized state and extracts its metadata.
func newRecord(state []byte, now time.Time) (*Record, error) {
	summary, err := agent.InspectState(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validRunID(summary.RunID); err != nil {
		return nil, err
	}
	return &Record{
		RunID:        summary.RunID,
		Status:       summary.Status,
		CurrentAgent: summary.CurrentAgent,
		Version:      1,
		State:        slices.Clone(state),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// replaces carries the identity of the record r overwrites.
func (r *Record) replaces(old *Record) {
	r.CreatedAt = old.CreatedAt
	r.Version = old.Version + 1
}

// checkVersion compares a stored record against the version a caller loaded.
func checkVersion(stored *Record, version int64) error {
	if stored.Version != version {
		return fmt.Errorf("%w: run %s is at version %d, not %d", ErrConflict, stored.RunID, stored.Version, version)
	}
	return nil
}

func validRunID(id string) error {
	if id == "" || len(id) > 128 {
		return fmt.Errorf("%w: run id %q", ErrInvalidInput, id)
	}
	for _, r := range id {
		ok := r == '-' || r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("%w: run id %q", ErrInvalidInput, id)
		}
	}
	return nil
}

// filterRecords applies f to records already sorted newest first.
func filterRecords(records []*Record, f ListFilter) []*Record {
	out := records[:0]
	for _, r := range records {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func sortNewestFirst(records []*Record) {
	slices.SortFunc(records, func(a, b *Record) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.RunID, b.RunID)
	})
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.State = slices.Clone(r.State)
	return &c
}
