package model

import "time"

// Automation is a saved strategy configuration. It is created and
// edited through the API and read-only to the trading engine.
type Automation struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name         string `gorm:"size:255;not null" json:"name"`
	Symbol       string `gorm:"size:20;not null;index" json:"symbol"`
	StrategyType string `gorm:"size:50;not null;default:momentum" json:"strategy_type"`

	Active bool `gorm:"not null;default:true" json:"active"`
	Paused bool `gorm:"not null;default:false" json:"paused"`

	// Entry gates
	MinConfidence   float64 `gorm:"not null;default:0.65" json:"min_confidence"`
	MaxPremium      float64 `gorm:"not null;default:5" json:"max_premium"`
	MinDTE          int     `gorm:"not null;default:14" json:"min_dte"`
	MaxDTE          int     `gorm:"not null;default:45" json:"max_dte"`
	PreferredDTE    int     `gorm:"not null;default:30" json:"preferred_dte"`
	MinDelta        float64 `gorm:"not null;default:0.25" json:"min_delta"`
	MaxDelta        float64 `gorm:"not null;default:0.60" json:"max_delta"`
	MinVolume       int     `gorm:"not null;default:10" json:"min_volume"`
	MinOpenInterest int     `gorm:"not null;default:50" json:"min_open_interest"`
	MaxSpreadPct    float64 `gorm:"not null;default:10" json:"max_spread_pct"`

	Quantity               int  `gorm:"not null;default:0" json:"quantity"` // 0 = auto-size
	AllowMultiplePositions bool `gorm:"not null;default:false" json:"allow_multiple_positions"`

	// Exit rules
	ProfitTarget1 float64 `gorm:"not null;default:0" json:"profit_target_1"`
	ProfitTarget2 float64 `gorm:"not null;default:0" json:"profit_target_2"`
	// ProfitTargetPercent is the legacy single-target field, still
	// honored when the tiered targets are unset.
	ProfitTargetPercent float64 `gorm:"not null;default:0" json:"profit_target_percent"`
	PartialExitEnabled  bool    `gorm:"not null;default:false" json:"partial_exit_enabled"`
	PartialExitPercent  float64 `gorm:"not null;default:50" json:"partial_exit_percent"`
	StopLossPercent     float64 `gorm:"not null;default:0" json:"stop_loss_percent"`
	MaxDaysToHold       int     `gorm:"not null;default:0" json:"max_days_to_hold"`
	MinDTEExit          int     `gorm:"not null;default:0" json:"min_dte_exit"`

	ExecutionCount uint       `gorm:"not null;default:0" json:"execution_count"`
	CloseCount     uint       `gorm:"not null;default:0" json:"close_count"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// Tradeable reports whether the engine should scan this automation.
func (a *Automation) Tradeable() bool {
	return a.Active && !a.Paused
}

// EffectiveProfitTarget2 returns the full-exit profit target, falling
// back to the legacy single-target field when the tiered one is unset.
func (a *Automation) EffectiveProfitTarget2() float64 {
	if a.ProfitTarget2 > 0 {
		return a.ProfitTarget2
	}
	return a.ProfitTargetPercent
}
