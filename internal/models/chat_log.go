package models

import "time"

// Log direction values.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// ChatLog is one line of the conversation audit trail. Rows older than the
// configured retention are purged by the daemon's cron sweep.
type ChatLog struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	TenantID       string `gorm:"size:64;not null;index"`
	ConversationID string `gorm:"size:128;not null;index"`
	Direction      string `gorm:"size:4;not null"` // "in" or "out"
	Text           string `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"index"`
}
