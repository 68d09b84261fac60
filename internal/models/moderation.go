package models

import (
	"time"

	"gorm.io/gorm"
)

// ModerationLog is one append-only audit entry for a hide or unhide action.
// A nil ModeratorID marks an automatic action.
type ModerationLog struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	ContentType ContentType `gorm:"type:varchar(16);not null;index:idx_moderation_logs_content,priority:1" json:"content_type"`
	ContentID   string      `gorm:"not null;index:idx_moderation_logs_content,priority:2" json:"content_id"`
	Action      string      `gorm:"type:varchar(16);not null" json:"action"` // "hide" or "unhide"
	Reason      *string     `gorm:"type:text" json:"reason"`
	ModeratorID *string     `gorm:"index" json:"moderator_id"`
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`
}

const (
	ModerationActionHide   = "hide"
	ModerationActionUnhide = "unhide"
)

func (l *ModerationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = generateUUID()
	}
	return nil
}
