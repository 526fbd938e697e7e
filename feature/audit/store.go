package audit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("merge run not found")

// DefaultListLimit caps List when no positive limit is given.
const DefaultListLimit = 20

// Store persists merge runs.
type Store struct {
	db *gorm.DB
}

// NewStore creates a ledger over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&MergeRun{}, &ShardRecord{}); err != nil {
		return fmt.Errorf("failed to migrate audit tables: %w", err)
	}
	return nil
}

// Record stores a run and its shard rows atomically.
func (s *Store) Record(ctx context.Context, run *MergeRun) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(run).Error; err != nil {
			return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
		}
		if len(run.ShardResults) == 0 {
			return nil
		}
		if err := tx.Create(&run.ShardResults).Error; err != nil {
			return fmt.Errorf("failed to record shard results of run %s: %w", run.RunID, err)
		}
		return nil
	})
}

// List returns the most recent runs first, without their shard rows.
func (s *Store) List(ctx context.Context, limit int) ([]MergeRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var runs []MergeRun
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its shard rows.
func (s *Store) Get(ctx context.Context, runID string) (*MergeRun, error) {
	var run MergeRun
	err := s.db.WithContext(ctx).
		Preload("ShardResults", func(db *gorm.DB) *gorm.DB { return db.Order("shard") }).
		Where("run_id = ?", runID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &run, nil
}
