package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole is a forum privilege tier, ordered from least to most privileged
type UserRole string

const (
	RoleNewbie    UserRole = "newbie"
	RoleMember    UserRole = "member"
	RolePro       UserRole = "pro"
	RoleEditor    UserRole = "editor"
	RoleModerator UserRole = "moderator"
	RoleAdmin     UserRole = "admin"
)

var roleRank = map[UserRole]int{
	RoleNewbie:    0,
	RoleMember:    1,
	RolePro:       2,
	RoleEditor:    3,
	RoleModerator: 4,
	RoleAdmin:     5,
}

// Rank returns the privilege level of the role. Unknown roles rank as newbie.
func (r UserRole) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is one of the known roles
func (r UserRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r is as privileged as other
func (r UserRole) AtLeast(other UserRole) bool {
	return r.Rank() >= other.Rank()
}

// User represents a ProHub Nexus forum account
type User struct {
	ID          string   `gorm:"primaryKey;type:uuid" json:"id"`
	Email       string   `gorm:"uniqueIndex;not null" json:"email"`
	Username    string   `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string   `gorm:"not null" json:"display_name"`
	Role        UserRole `gorm:"type:varchar(16);not null;default:newbie;index" json:"role"`
	Reputation  int      `gorm:"default:0" json:"reputation"`

	PasswordHash *string `gorm:"type:text" json:"-"`

	// Activity tracking
	LastActiveAt *time.Time `json:"last_active_at"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Name returns the display name, falling back to the username
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	if u.Role == "" {
		u.Role = RoleNewbie
	}
	return nil
}

// Helper function for UUID generation
func generateUUID() string {
	return uuid.New().String()
}
