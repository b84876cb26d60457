package backtest

import (
	"context"
	"errors"
	"fmt"

	"market-tools-go/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("backtest run not found")

// Store persists simulation runs.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an already migrated database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveRun assigns run a fresh id and writes it with its trades in a single
// transaction.
func (s *Store) SaveRun(ctx context.Context, run *models.BacktestRun) error {
	run.RunID = uuid.NewString()
	for i := range run.SimulatedTrades {
		run.SimulatedTrades[i].RunID = run.RunID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("SimulatedTrades").Create(run).Error; err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		if len(run.SimulatedTrades) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(run.SimulatedTrades, 500).Error; err != nil {
			return fmt.Errorf("failed to save trades for run %s: %w", run.RunID, err)
		}
		return nil
	})
}

// ListRuns returns up to limit runs, newest first, without their trades.
// A non-positive limit returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.BacktestRun, error) {
	var runs []models.BacktestRun
	q := s.db.WithContext(ctx).Order("created_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun loads one run together with its trades in entry order.
func (s *Store) GetRun(ctx context.Context, runID string) (*models.BacktestRun, error) {
	var run models.BacktestRun
	err := s.db.WithContext(ctx).
		Preload("SimulatedTrades", func(db *gorm.DB) *gorm.DB { return db.Order("entry_time") }).
		Where("run_id = ?", runID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}
