package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/agentrun/agent"
)

// runStateRow is the table model for SQLStore.
type runStateRow struct {
	RunID        string    `gorm:"primaryKey;size:128"`
	Status       string    `gorm:"size:32;index"`
	CurrentAgent string    `gorm:"size:255"`
	Version      int64     `gorm:"not null;default:1"`
	State        []byte    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time `gorm:"index"`
}

func (runStateRow) TableName() string { return "agent_run_states" }

func (r *runStateRow) record() *Record {
	return &Record{
		RunID:        r.RunID,
		Status:       agent.RunStatus(r.Status),
		CurrentAgent: r.CurrentAgent,
		Version:      r.Version,
		State:        r.State,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// SQLStore keeps records in a relational table through gorm.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLStore migrates the run state table and returns the store.
func NewSQLStore(ctx context.Context, db *gorm.DB) (*SQLStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&runStateRow{}); err != nil {
		return nil, fmt.Errorf("migrate run state table: %w", err)
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, state []byte) (*Record, error) {
	rec, err := newRecord(state, s.now())
	if err != nil {
		return nil, err
	}
	row := runStateRow{
		RunID:        rec.RunID,
		Status:       string(rec.Status),
		CurrentAgent: rec.CurrentAgent,
		Version:      rec.Version,
		State:        rec.State,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":        row.Status,
			"current_agent": row.CurrentAgent,
			"state":         row.State,
			"updated_at":    row.UpdatedAt,
			"version":       gorm.Expr("agent_run_states.version + 1"),
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("save run state %s: %w", rec.RunID, err)
	}
	return s.Load(ctx, rec.RunID)
}

// Update implements Store as a single conditional UPDATE on run_id and
// version.
func (s *SQLStore) Update(ctx context.Context, state []byte, version int64) (*Record, error) {
	rec, err := newRecord(state, s.now())
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&runStateRow{}).
		Where("run_id = ? AND version = ?", rec.RunID, version).
		Updates(map[string]any{
			"status":        string(rec.Status),
			"current_agent": rec.CurrentAgent,
			"state":         rec.State,
			"updated_at":    rec.UpdatedAt,
			"version":       version + 1,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update run state %s: %w", rec.RunID, res.Error)
	}
	if res.RowsAffected == 0 {
		cur, err := s.Load(ctx, rec.RunID)
		if err != nil {
			return nil, err
		}
		if err := checkVersion(cur, version); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: run %s", ErrConflict, rec.RunID)
	}
	return s.Load(ctx, rec.RunID)
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context, runID string) (*Record, error) {
	var row runStateRow
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run state %s: %w", runID, err)
	}
	return row.record(), nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	q := s.db.WithContext(ctx).Order("updated_at DESC").Order("run_id ASC")
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []runStateRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list run states: %w", err)
	}
	out := make([]*Record, len(rows))
	for i := range rows {
		out[i] = rows[i].record()
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, runID string) error {
	res := s.db.WithContext(ctx).Where("run_id = ?", runID).Delete(&runStateRow{})
	if res.Error != nil {
		return fmt.Errorf("delete run state %s: %w", runID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements Store.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
