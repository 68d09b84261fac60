package models

import "time"

// VisitorType classifies a presence session
type VisitorType string

const (
	VisitorUser  VisitorType = "user"
	VisitorGuest VisitorType = "guest"
	VisitorRobot VisitorType = "robot"
)

// OnlineSession is the live presence row for one browser session
type OnlineSession struct {
	SessionID   string      `gorm:"primaryKey;type:varchar(128)" json:"session_id"`
	UserID      *string     `gorm:"index" json:"user_id"`
	UserType    VisitorType `gorm:"type:varchar(8);not null;index" json:"user_type"`
	CurrentPage string      `gorm:"type:text" json:"current_page"`
	LastSeenAt  time.Time   `gorm:"not null;index" json:"last_seen_at"`
	UserAgent   string      `gorm:"type:text" json:"user_agent"`
	IPHash      string      `gorm:"type:varchar(64)" json:"ip_hash"`
}
