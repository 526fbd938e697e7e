package report

import (
	"context"

	"table-merger/feature/audit"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Ledger is the read side of the audit store.
type Ledger interface {
	List(ctx context.Context, limit int) ([]audit.MergeRun, error)
	Get(ctx context.Context, runID string) (*audit.MergeRun, error)
}

// Service answers report queries.
type Service struct {
	ledger Ledger
	logger *zap.Logger
	runs   singleflight.Group
}

// NewService creates a report service over ledger.
func NewService(ledger Ledger, logger *zap.Logger) *Service {
	return &Service{ledger: ledger, logger: logger}
}

// MaxListLimit caps the limit query parameter.
const MaxListLimit = 200

// Recent returns up to limit runs, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]audit.MergeRun, error) {
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.ledger.List(ctx, limit)
}

// Run returns one run with its shard results.
// Concurrent requests for the same run share one ledger query.
func (s *Service) Run(ctx context.Context, runID string) (*audit.MergeRun, error) {
	v, err, _ := s.runs.Do(runID, func() (any, error) {
		return s.ledger.Get(ctx, runID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*audit.MergeRun), nil
}
