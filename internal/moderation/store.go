package moderation

import (
	"context"
	"strings"
	"time"

	apierrors "github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/models"
	"gorm.io/gorm"
)

// Reference identifies one moderatable content item
type Reference struct {
	ContentType models.ContentType `json:"content_type"`
	ContentID   string             `json:"content_id"`
}

// ParseReference validates raw path parameters
func ParseReference(contentType, contentID string) (Reference, error) {
	t := models.ContentType(contentType)
	if !t.Valid() {
		return Reference{}, apierrors.ValidationError("content_type", "content type must be topic, post, resource or video")
	}
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return Reference{}, apierrors.ValidationError("content_id", "content id is required")
	}
	return Reference{ContentType: t, ContentID: contentID}, nil
}

// StatusFilter selects content by hidden state
type StatusFilter string

const (
	StatusAll    StatusFilter = "all"
	StatusHidden StatusFilter = "hidden"
	StatusActive StatusFilter = "active"
)

// ListFilter narrows ListModeratedContent
type ListFilter struct {
	Status StatusFilter
	Search string
}

// ContentRow is a moderation view of one content item
type ContentRow struct {
	ID          string             `json:"id"`
	ContentType models.ContentType `json:"content_type" gorm:"-"`
	UserID      string             `json:"user_id"`
	Title       string             `json:"title"`
	Body        string             `json:"body"`
	IsHidden    bool               `json:"is_hidden"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ContentStore is the persistence boundary of the workflow
type ContentStore interface {
	// SetHidden updates the hidden flag and appends entry in one transaction.
	// It returns the content author id.
	SetHidden(ctx context.Context, ref Reference, hidden bool, entry *models.ModerationLog) (string, error)
	// History returns audit entries newest first
	History(ctx context.Context, ref Reference) ([]models.ModerationLog, error)
	// List returns content rows newest first
	List(ctx context.Context, contentType models.ContentType, filter ListFilter, limit int) ([]ContentRow, error)
}

// GormContentStore implements ContentStore on the forum tables
type GormContentStore struct {
	db *gorm.DB
}

func NewGormContentStore(db *gorm.DB) *GormContentStore {
	return &GormContentStore{db: db}
}

func (s *GormContentStore) SetHidden(ctx context.Context, ref Reference, hidden bool, entry *models.ModerationLog) (string, error) {
	var authorID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(ref.ContentType.Table()).
			Where("id = ?", ref.ContentID).
			Update("is_hidden", hidden)
		if res.Error != nil {
			return apierrors.Upstream("content store", res.Error)
		}
		if res.RowsAffected == 0 {
			return apierrors.NotFound(string(ref.ContentType))
		}

		var authors []string
		if err := tx.Table(ref.ContentType.Table()).
			Where("id = ?", ref.ContentID).
			Limit(1).
			Pluck("user_id", &authors).Error; err != nil {
			return apierrors.Upstream("content store", err)
		}
		if len(authors) > 0 {
			authorID = authors[0]
		}

		if err := tx.Create(entry).Error; err != nil {
			return apierrors.Upstream("moderation log", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return authorID, nil
}

func (s *GormContentStore) History(ctx context.Context, ref Reference) ([]models.ModerationLog, error) {
	var entries []models.ModerationLog
	err := s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", ref.ContentType, ref.ContentID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, apierrors.Upstream("moderation log", err)
	}
	return entries, nil
}

func (s *GormContentStore) List(ctx context.Context, contentType models.ContentType, filter ListFilter, limit int) ([]ContentRow, error) {
	titleExpr := "''"
	if col := contentType.TitleColumn(); col != "" {
		titleExpr = col
	}
	bodyCol := contentType.BodyColumn()

	query := s.db.WithContext(ctx).
		Table(contentType.Table()).
		Select("id, user_id, " + titleExpr + " AS title, " + bodyCol + " AS body, is_hidden, created_at")

	switch filter.Status {
	case StatusHidden:
		query = query.Where("is_hidden = ?", true)
	case StatusActive:
		query = query.Where("is_hidden = ?", false)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		if contentType.TitleColumn() != "" {
			query = query.Where("(LOWER("+titleExpr+") LIKE ? ESCAPE '\\' OR LOWER("+bodyCol+") LIKE ? ESCAPE '\\')", pattern, pattern)
		} else {
			query = query.Where("LOWER("+bodyCol+") LIKE ? ESCAPE '\\'", pattern)
		}
	}

	var rows []ContentRow
	if err := query.Order("created_at DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, apierrors.Upstream("content store", err)
	}
	for i := range rows {
		rows[i].ContentType = contentType
	}
	return rows, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
