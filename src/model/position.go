package model

import "time"

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Greeks captures option price sensitivities at a point in time.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Position is an open or closed holding. It is created on a buy fill,
// mutated on price refreshes and sell fills, and immutable once closed
// except for audit notes.
type Position struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	UserID       uint  `gorm:"index" json:"user_id"`
	AutomationID *uint `gorm:"index" json:"automation_id,omitempty"`

	Symbol string `gorm:"size:20;not null;index" json:"symbol"`

	// Option leg, empty for equity positions.
	OptionSymbol string     `gorm:"size:40" json:"option_symbol,omitempty"`
	Strike       float64    `json:"strike,omitempty"`
	Expiration   *time.Time `json:"expiration,omitempty"`
	Right        string     `gorm:"size:10" json:"right,omitempty"`

	Quantity      int      `gorm:"not null" json:"quantity"`
	EntryPrice    float64  `gorm:"not null" json:"entry_price"`
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	UnrealizedPnl float64  `json:"unrealized_pnl"`
	RealizedPnl   *float64 `json:"realized_pnl,omitempty"`

	EntryGreeks   Greeks `gorm:"embedded;embeddedPrefix:entry_" json:"entry_greeks"`
	CurrentGreeks Greeks `gorm:"embedded;embeddedPrefix:current_" json:"current_greeks"`

	Status   string     `gorm:"size:50;not null;default:open;index" json:"status"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	// Notes is the only field that may change after close.
	Notes string `gorm:"size:1024" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Kind returns the position's instrument classification.
func (p *Position) Kind() InstrumentKind {
	return ResolveInstrumentKind(p.OptionSymbol, p.Right, p.Strike, p.Expiration, p.Right)
}

// Multiplier returns the contract multiplier for the position.
func (p *Position) Multiplier() float64 {
	return p.Kind().Multiplier()
}

// IsOpen reports whether the position still holds quantity.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen && p.Quantity > 0
}

// PnlAt returns the profit or loss of the full position at the given
// per-unit price.
func (p *Position) PnlAt(price float64) float64 {
	return (price - p.EntryPrice) * float64(p.Quantity) * p.Multiplier()
}

// PnlPercentAt returns the percent gain or loss at the given price
// relative to the entry price. Zero entry price yields zero.
func (p *Position) PnlPercentAt(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// DaysHeld returns whole days since the position was opened.
func (p *Position) DaysHeld(now time.Time) int {
	return DaysBetween(p.OpenedAt, now)
}

// DaysToExpiration returns whole days to the option leg's expiration,
// or -1 for equity positions.
func (p *Position) DaysToExpiration(now time.Time) int {
	return p.Kind().DaysToExpiration(now)
}
