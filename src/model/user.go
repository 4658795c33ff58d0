package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	TradingModePaper = "paper"
	TradingModeLive  = "live"

	RiskToleranceConservative = "conservative"
	RiskToleranceModerate     = "moderate"
	RiskToleranceAggressive   = "aggressive"
)

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	TradingMode   string `gorm:"size:20;not null;default:paper" json:"trading_mode"`
	RiskTolerance string `gorm:"size:20;not null;default:moderate" json:"risk_tolerance"`

	PaperBalance         float64 `gorm:"not null;default:100000" json:"paper_balance"`
	PaperStartingBalance float64 `gorm:"not null;default:100000" json:"paper_starting_balance"`

	NotificationsEnabled bool `gorm:"not null;default:false" json:"notifications_enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetPassword hashes and stores the given plaintext password.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// IsPaper reports whether the account trades against the simulated ledger.
func (u *User) IsPaper() bool {
	return u.TradingMode != TradingModeLive
}
