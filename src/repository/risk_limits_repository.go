package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsengine/src/database"
	"optionsengine/src/model"
)

// RiskLimitsRepository handles the one-row-per-user risk limits table.
type RiskLimitsRepository struct {
	db *gorm.DB
}

// NewRiskLimitsRepository creates a new repository instance using the main read/write database.
func NewRiskLimitsRepository() *RiskLimitsRepository {
	return &RiskLimitsRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *RiskLimitsRepository) WithDB(db *gorm.DB) *RiskLimitsRepository {
	return &RiskLimitsRepository{db: db}
}

// FindByUserID fetches the limits row for a user.
// Returns (nil, nil) if no row exists yet.
func (r *RiskLimitsRepository) FindByUserID(ctx context.Context, userID uint) (*model.RiskLimits, error) {
	var limits model.RiskLimits

	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&limits).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "RiskLimitsRepository",
			"op":      "FindByUserID",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch risk limits")

		return nil, err
	}

	return &limits, nil
}

// Create inserts the lazily generated limits row.
func (r *RiskLimitsRepository) Create(ctx context.Context, limits *model.RiskLimits) error {
	err := r.db.WithContext(ctx).Create(limits).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "RiskLimitsRepository",
			"op":      "Create",
			"user_id": limits.UserID,
		}).WithError(err).Error("Failed to create risk limits")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "RiskLimitsRepository",
		"op":      "Create",
		"user_id": limits.UserID,
	}).Info("Risk limits created with defaults")

	return nil
}

// Save persists an explicit user update or a tolerance-change cascade.
func (r *RiskLimitsRepository) Save(ctx context.Context, limits *model.RiskLimits) error {
	err := r.db.WithContext(ctx).Save(limits).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "RiskLimitsRepository",
			"op":      "Save",
			"user_id": limits.UserID,
		}).WithError(err).Error("Failed to save risk limits")

		return err
	}

	return nil
}
