package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsengine/src/database"
	"optionsengine/src/model"
)

// PositionRepository handles read/write operations for positions.
// Ledger-mutating writes (quantity, entry price, close) must go
// through the trade executor's transactions.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindByID fetches a single position by primary ID.
// Returns (nil, nil) if the position is not found.
func (r *PositionRepository) FindByID(ctx context.Context, id uint) (*model.Position, error) {
	var position model.Position

	err := r.db.WithContext(ctx).First(&position, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch position by ID")

		return nil, err
	}

	return &position, nil
}

// FindOpenByUser returns the user's open positions.
func (r *PositionRepository) FindOpenByUser(ctx context.Context, userID uint) ([]model.Position, error) {
	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.PositionStatusOpen).
		Order("id ASC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindOpenByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch open positions")

		return nil, err
	}

	return positions, nil
}

// FindOpenByUserAndSymbol returns the user's open positions on one underlying.
func (r *PositionRepository) FindOpenByUserAndSymbol(ctx context.Context, userID uint, symbol string) ([]model.Position, error) {
	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, model.PositionStatusOpen).
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindOpenByUserAndSymbol",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to fetch open positions by symbol")

		return nil, err
	}

	return positions, nil
}

// FindAllOpen returns every open position system-wide, for the monitor pass.
func (r *PositionRepository) FindAllOpen(ctx context.Context) ([]model.Position, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "PositionRepository",
		"op":   "FindAllOpen",
	}).Debug("Fetching all open positions")

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("status = ?", model.PositionStatusOpen).
		Order("id ASC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "FindAllOpen",
		}).WithError(err).Error("Failed to fetch open positions")

		return nil, err
	}

	return positions, nil
}

// FindByUser returns the user's positions, open first, newest first within status.
func (r *PositionRepository) FindByUser(ctx context.Context, userID uint, limit int) ([]model.Position, error) {
	if limit <= 0 {
		limit = 100
	}

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("status ASC, id DESC").
		Limit(limit).
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch positions for user")

		return nil, err
	}

	return positions, nil
}

// OpenPositionMatching finds an open position with the same instrument
// so buy fills can grow it instead of opening a duplicate.
// Returns (nil, nil) when nothing matches.
func (r *PositionRepository) OpenPositionMatching(ctx context.Context, userID uint, symbol, optionSymbol string, strike float64, right string) (*model.Position, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, model.PositionStatusOpen)

	if optionSymbol != "" {
		query = query.Where("option_symbol = ?", optionSymbol)
	} else if strike > 0 {
		query = query.Where("strike = ? AND \"right\" = ?", strike, right)
	} else {
		query = query.Where("option_symbol = '' AND strike = 0")
	}

	var position model.Position
	err := query.Order("id ASC").First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "OpenPositionMatching",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to match open position")

		return nil, err
	}

	return &position, nil
}

// UpdateMarketData refreshes the monitor-owned fields: current price,
// current Greeks and unrealized P&L.
func (r *PositionRepository) UpdateMarketData(ctx context.Context, position *model.Position) error {
	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND status = ?", position.ID, model.PositionStatusOpen).
		Updates(map[string]interface{}{
			"current_price":  position.CurrentPrice,
			"unrealized_pnl": position.UnrealizedPnl,
			"current_delta":  position.CurrentGreeks.Delta,
			"current_gamma":  position.CurrentGreeks.Gamma,
			"current_theta":  position.CurrentGreeks.Theta,
			"current_vega":   position.CurrentGreeks.Vega,
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "UpdateMarketData",
			"id":   position.ID,
		}).WithError(err).Error("Failed to update position market data")

		return err
	}

	return nil
}

// AppendNote adds an audit note. Notes are the only field mutable
// after a position closes.
func (r *PositionRepository) AppendNote(ctx context.Context, id uint, note string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", id).
		Update("notes", gorm.Expr("CASE WHEN notes = '' THEN ? ELSE notes || '; ' || ? END", note, note)).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "AppendNote",
			"id":   id,
		}).WithError(err).Error("Failed to append position note")

		return err
	}

	return nil
}
