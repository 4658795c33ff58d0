package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsengine/src/database"
	"optionsengine/src/model"
)

// AlertRepository handles engine notification rows.
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new repository instance using the main read/write database.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *AlertRepository) WithDB(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts one alert row.
func (r *AlertRepository) Create(ctx context.Context, alert *model.Alert) error {
	err := r.db.WithContext(ctx).Create(alert).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "AlertRepository",
			"op":      "Create",
			"user_id": alert.UserID,
			"level":   alert.Level,
		}).WithError(err).Error("Failed to create alert")

		return err
	}

	return nil
}

// FindUnreadByUser returns the user's unread alerts, newest first.
func (r *AlertRepository) FindUnreadByUser(ctx context.Context, userID uint, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	var alerts []model.Alert

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND read_at IS NULL", userID).
		Order("id DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "AlertRepository",
			"op":      "FindUnreadByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch unread alerts")

		return nil, err
	}

	return alerts, nil
}
