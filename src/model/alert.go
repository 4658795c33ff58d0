package model

import "time"

const (
	AlertLevelInfo    = "info"
	AlertLevelWarning = "warning"
	AlertLevelError   = "error"
)

// Alert is a per-user notification row written at the end of engine
// cycles for users with notifications enabled.
type Alert struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	UserID   uint           `gorm:"index;not null" json:"user_id"`
	Level    string         `gorm:"size:20;not null" json:"level"`
	Message  string         `gorm:"size:1024;not null" json:"message"`
	Metadata map[string]any `gorm:"serializer:json" json:"metadata,omitempty"`
	ReadAt   *time.Time     `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
