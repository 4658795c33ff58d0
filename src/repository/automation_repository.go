package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsengine/src/database"
	"optionsengine/src/model"
)

// AutomationRepository handles read operations for strategy
// automations plus the engine-owned execution counters. The strategy
// configuration itself is read-only to the engine.
type AutomationRepository struct {
	db *gorm.DB
}

// NewAutomationRepository creates a new repository instance using the main read/write database.
func NewAutomationRepository() *AutomationRepository {
	return &AutomationRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *AutomationRepository) WithDB(db *gorm.DB) *AutomationRepository {
	return &AutomationRepository{db: db}
}

// FindByID fetches a single automation by primary ID.
// Returns (nil, nil) if the automation is not found.
func (r *AutomationRepository) FindByID(ctx context.Context, id uint) (*model.Automation, error) {
	var automation model.Automation

	err := r.db.WithContext(ctx).First(&automation, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "AutomationRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch automation by ID")

		return nil, err
	}

	return &automation, nil
}

// FindActiveByUser returns the user's active, unpaused automations.
func (r *AutomationRepository) FindActiveByUser(ctx context.Context, userID uint) ([]model.Automation, error) {
	logger.WithFields(map[string]interface{}{
		"repo":    "AutomationRepository",
		"op":      "FindActiveByUser",
		"user_id": userID,
	}).Debug("Fetching active automations")

	var automations []model.Automation

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND paused = ?", userID, true, false).
		Order("id ASC").
		Find(&automations).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "AutomationRepository",
			"op":      "FindActiveByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch active automations")

		return nil, err
	}

	return automations, nil
}

// IncrementExecutionCount bumps the entry counter and stamps the
// execution time after the executor fills an opportunity.
func (r *AutomationRepository) IncrementExecutionCount(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.Automation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"execution_count":  gorm.Expr("execution_count + 1"),
			"last_executed_at": at,
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "AutomationRepository",
			"op":   "IncrementExecutionCount",
			"id":   id,
		}).WithError(err).Error("Failed to increment execution count")

		return err
	}

	return nil
}

// IncrementCloseCount bumps the exit counter after the monitor closes
// a position owned by this automation.
func (r *AutomationRepository) IncrementCloseCount(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&model.Automation{}).
		Where("id = ?", id).
		Update("close_count", gorm.Expr("close_count + 1")).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "AutomationRepository",
			"op":   "IncrementCloseCount",
			"id":   id,
		}).WithError(err).Error("Failed to increment close count")

		return err
	}

	return nil
}
