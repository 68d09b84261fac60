package models

import (
	"time"

	"gorm.io/gorm"
)

const NotificationContentHidden = "content_hidden"

// Notification is an in-app message delivered to a user
type Notification struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string      `gorm:"not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type        string      `gorm:"type:varchar(32);not null" json:"type"`
	Title       string      `gorm:"not null" json:"title"`
	Message     string      `gorm:"type:text" json:"message"`
	ContentType ContentType `gorm:"type:varchar(16)" json:"content_type,omitempty"`
	ContentID   string      `json:"content_id,omitempty"`
	ActorID     *string     `json:"actor_id,omitempty"`
	IsRead      bool        `gorm:"default:false" json:"is_read"`
	CreatedAt   time.Time   `gorm:"index:idx_notifications_user_created,priority:2" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	return nil
}
