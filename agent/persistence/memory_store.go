package persistence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	closed  bool
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record), now: time.Now}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, state []byte) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, err := newRecord(state, s.now())
	if err != nil {
		return nil, err
	}
	if old, ok := s.records[rec.RunID]; ok {
		rec.replaces(old)
	}
	s.records[rec.RunID] = rec
	return cloneRecord(rec), nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, state []byte, version int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, err := newRecord(state, s.now())
	if err != nil {
		return nil, err
	}
	old, ok := s.records[rec.RunID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := checkVersion(old, version); err != nil {
		return nil, err
	}
	rec.replaces(old)
	s.records[rec.RunID] = rec
	return cloneRecord(rec), nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, runID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, ok := s.records[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, cloneRecord(r))
	}
	sortNewestFirst(out)
	return filterRecords(out, filter), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.records[runID]; !ok {
		return ErrNotFound
	}
	delete(s.records, runID)
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
