package model

import "time"

// RiskLimits is one row per user, lazily created with tolerance-scaled
// defaults. It changes only on an explicit user update or when the
// user's risk tolerance changes, which cascades fresh defaults.
type RiskLimits struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	MaxOpenPositions      int     `gorm:"not null;default:10" json:"max_open_positions"`
	MaxPositionsPerSymbol int     `gorm:"not null;default:2" json:"max_positions_per_symbol"`
	MaxPositionSizePct    float64 `gorm:"not null;default:5" json:"max_position_size_percent"`
	MaxPositionSizeUSD    float64 `gorm:"not null;default:5000" json:"max_position_size_dollars"`
	MaxDailyLossPct       float64 `gorm:"not null;default:3" json:"max_daily_loss_percent"`

	MinDTE int `gorm:"not null;default:7" json:"min_dte"`
	MaxDTE int `gorm:"not null;default:60" json:"max_dte"`

	MaxPortfolioDelta   float64 `gorm:"not null;default:50" json:"max_portfolio_delta"`
	MaxPortfolioTheta   float64 `gorm:"not null;default:-100" json:"max_portfolio_theta"`
	MaxPortfolioVega    float64 `gorm:"not null;default:200" json:"max_portfolio_vega"`
	MaxSingleTradeDelta float64 `gorm:"not null;default:0.8" json:"max_single_trade_delta"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RiskLimits) TableName() string {
	return "risk_limits"
}
