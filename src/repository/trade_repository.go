package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsengine/src/database"
	"optionsengine/src/model"
)

// TradeRepository handles the append-only fill ledger. Trades are
// never updated or deleted; corrections are written as new rows.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main read/write database.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create appends a fill to the ledger.
func (r *TradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "Create",
		"symbol": trade.Symbol,
		"action": trade.Action,
		"qty":    trade.Quantity,
		"price":  trade.Price,
	}).Debug("Appending trade to ledger")

	err := r.db.WithContext(ctx).Create(trade).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create trade")

		return err
	}

	return nil
}

// FindByUser returns the user's trades, newest first.
func (r *TradeRepository) FindByUser(ctx context.Context, userID uint, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRepository",
			"op":      "FindByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch trades for user")

		return nil, err
	}

	return trades, nil
}

// FindByPosition returns every fill recorded against one position.
func (r *TradeRepository) FindByPosition(ctx context.Context, positionID uint) ([]model.Trade, error) {
	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "TradeRepository",
			"op":          "FindByPosition",
			"position_id": positionID,
		}).WithError(err).Error("Failed to fetch trades for position")

		return nil, err
	}

	return trades, nil
}

// RealizedPnlSince sums realized P&L for sell fills executed on or
// after the given time. Used for the daily-loss risk check.
func (r *TradeRepository) RealizedPnlSince(ctx context.Context, userID uint, since time.Time) (float64, error) {
	var total *float64

	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Select("SUM(realized_pnl)").
		Where("user_id = ? AND action = ? AND executed_at >= ?", userID, model.TradeActionSell, since).
		Scan(&total).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRepository",
			"op":      "RealizedPnlSince",
			"user_id": userID,
			"since":   since,
		}).WithError(err).Error("Failed to sum realized pnl")

		return 0, err
	}

	if total == nil {
		return 0, nil
	}
	return *total, nil
}
