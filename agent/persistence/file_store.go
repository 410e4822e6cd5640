package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore writes one JSON file per run under a directory.
// Suitable for single-node deployments.
type FileStore struct {
	dir    string
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run state directory: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

func (s *FileStore) read(runID string) (*Record, error) {
	data, err := os.ReadFile(s.path(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read run state %s: %w", runID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode run state file %s: %w", runID, err)
	}
	return &rec, nil
}

// Save implements Store. Files are replaced atomically.
func (s *FileStore) Save(_ context.Context, state []byte) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, err := newRecord(state, s.now())
	if err != nil {
		return nil, err
	}
	if old, err := s.read(rec.RunID); err == nil {
		rec.replaces(old)
	}
	return s.write(rec)
}

// Update implements Store. The version check and the write share the store
// lock, so it only guards against writers in the same process.
func (s *FileStore) Update(_ context.Context, state []byte, version int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, err := newRecord(state, s.now())
	if err != nil {
		return nil, err
	}
	old, err := s.read(rec.RunID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(old, version); err != nil {
		return nil, err
	}
	rec.replaces(old)
	return s.write(rec)
}

func (s *FileStore) write(rec *Record) (*Record, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, rec.RunID+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write run state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write run state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(rec.RunID)); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("replace run state: %w", err)
	}
	return cloneRecord(rec), nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, runID string) (*Record, error) {
	if err := validRunID(runID); err != nil {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.read(runID)
}

// List implements Store.
func (s *FileStore) List(_ context.Context, filter ListFilter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list run states: %w", err)
	}
	var out []*Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return filterRecords(out, filter), nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, runID string) error {
	if err := validRunID(runID); err != nil {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	err := os.Remove(s.path(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// Ping implements Store.
func (s *FileStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.dir)
	return err
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
