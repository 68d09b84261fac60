package models

import (
	"time"

	"gorm.io/gorm"
)

// ContentType identifies a moderatable kind of content
type ContentType string

const (
	ContentTopic    ContentType = "topic"
	ContentPost     ContentType = "post"
	ContentResource ContentType = "resource"
	ContentVideo    ContentType = "video"
)

// ContentTypes lists every moderatable content type
var ContentTypes = []ContentType{ContentTopic, ContentPost, ContentResource, ContentVideo}

// Valid reports whether t is a known content type
func (t ContentType) Valid() bool {
	switch t {
	case ContentTopic, ContentPost, ContentResource, ContentVideo:
		return true
	}
	return false
}

// Table returns the table backing the content type
func (t ContentType) Table() string {
	switch t {
	case ContentTopic:
		return "topics"
	case ContentPost:
		return "posts"
	case ContentResource:
		return "resources"
	case ContentVideo:
		return "videos"
	}
	return ""
}

// TitleColumn returns the title column, or "" when the type has none
func (t ContentType) TitleColumn() string {
	if t == ContentPost {
		return ""
	}
	return "title"
}

// BodyColumn returns the free-text column searched alongside the title
func (t ContentType) BodyColumn() string {
	switch t {
	case ContentTopic, ContentPost:
		return "content"
	case ContentResource, ContentVideo:
		return "description"
	}
	return ""
}

// Topic is a forum thread opener
type Topic struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string `gorm:"not null;index" json:"user_id"`
	User       *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CategoryID string `gorm:"index" json:"category_id,omitempty"`
	Title      string `gorm:"not null" json:"title"`
	Content    string `gorm:"type:text" json:"content"`
	IsHidden   bool   `gorm:"default:false;index" json:"is_hidden"`
	IsPinned   bool   `gorm:"default:false" json:"is_pinned"`
	ViewCount  int    `gorm:"default:0" json:"view_count"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Post is a reply inside a topic
type Post struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	TopicID  string `gorm:"not null;index" json:"topic_id"`
	UserID   string `gorm:"not null;index" json:"user_id"`
	User     *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content  string `gorm:"type:text;not null" json:"content"`
	IsHidden bool   `gorm:"default:false;index" json:"is_hidden"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resource is a shared download or link
type Resource struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string `gorm:"not null;index" json:"user_id"`
	User        *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	URL         string `gorm:"type:text" json:"url"`
	IsHidden    bool   `gorm:"default:false;index" json:"is_hidden"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Video is an embedded video entry
type Video struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string `gorm:"not null;index" json:"user_id"`
	User        *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	VideoURL    string `gorm:"type:text" json:"video_url"`
	IsHidden    bool   `gorm:"default:false;index" json:"is_hidden"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = generateUUID()
	}
	return nil
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	return nil
}
