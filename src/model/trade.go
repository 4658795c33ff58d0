package model

import "time"

const (
	TradeActionBuy  = "buy"
	TradeActionSell = "sell"

	TradeSourceAutomation = "automation"
	TradeSourceManual     = "manual"
	TradeSourceMonitor    = "monitor"
)

// Trade is one immutable ledger line per fill. Rows are append-only;
// corrections are written as new trades plus cleared fields on the
// original, never destructive rewrites.
type Trade struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	UserID       uint  `gorm:"index" json:"user_id"`
	AutomationID *uint `gorm:"index" json:"automation_id,omitempty"`
	PositionID   *uint `gorm:"index" json:"position_id,omitempty"`

	Symbol string `gorm:"size:20;not null;index" json:"symbol"`

	OptionSymbol string     `gorm:"size:40" json:"option_symbol,omitempty"`
	Strike       float64    `json:"strike,omitempty"`
	Expiration   *time.Time `json:"expiration,omitempty"`
	Right        string     `gorm:"size:10" json:"right,omitempty"`

	Action   string  `gorm:"size:10;not null" json:"action"` // buy | sell
	Quantity int     `gorm:"not null" json:"quantity"`
	Price    float64 `gorm:"not null" json:"price"`

	GreeksAtTrade Greeks `gorm:"embedded;embeddedPrefix:trade_" json:"greeks_at_trade"`

	// RealizedPnl is stamped on sell fills that close quantity.
	RealizedPnl *float64 `json:"realized_pnl,omitempty"`

	Source        string `gorm:"size:20;not null;default:manual" json:"source"`
	ClientOrderID string `gorm:"size:64" json:"client_order_id,omitempty"`

	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Kind returns the trade's instrument classification.
func (t *Trade) Kind() InstrumentKind {
	return ResolveInstrumentKind(t.OptionSymbol, t.Right, t.Strike, t.Expiration, t.Right)
}

// Multiplier returns the contract multiplier for the trade.
func (t *Trade) Multiplier() float64 {
	return t.Kind().Multiplier()
}

// Notional returns the cash value the fill moved through the ledger.
func (t *Trade) Notional() float64 {
	return t.Price * float64(t.Quantity) * t.Multiplier()
}
