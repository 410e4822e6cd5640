package metrics

import (
	"context"
	"time"

	"github.com/BaSui01/agentrun/agent/persistence"
)

// InstrumentedStore records the outcome and latency of every store call.
type InstrumentedStore struct {
	persistence.Store
	backend   string
	collector *Collector
}

// InstrumentStore wraps s, labelling its metrics with backend.
func (c *Collector) InstrumentStore(s persistence.Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{Store: s, backend: backend, collector: c}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.collector.RecordStoreOperation(s.backend, op, err, time.Since(start))
}

func (s *InstrumentedStore) Save(ctx context.Context, state []byte) (*persistence.Record, error) {
	start := time.Now()
	rec, err := s.Store.Save(ctx, state)
	s.observe("save", start, err)
	return rec, err
}

func (s *InstrumentedStore) Update(ctx context.Context, state []byte, version int64) (*persistence.Record, error) {
	start := time.Now()
	rec, err := s.Store.Update(ctx, state, version)
	s.observe("update", start, err)
	return rec, err
}

func (s *InstrumentedStore) Load(ctx context.Context, runID string) (*persistence.Record, error) {
	start := time.Now()
	rec, err := s.Store.Load(ctx, runID)
	s.observe("load", start, err)
	return rec, err
}

func (s *InstrumentedStore) List(ctx context.Context, filter persistence.ListFilter) ([]*persistence.Record, error) {
	start := time.Now()
	recs, err := s.Store.List(ctx, filter)
	s.observe("list", start, err)
	return recs, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, runID string) error {
	start := time.Now()
	err := s.Store.Delete(ctx, runID)
	s.observe("delete", start, err)
	return err
}
