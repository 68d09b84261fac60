package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	apierrors "github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store holds the shared table of live sessions
type Store interface {
	// Upsert inserts or replaces the row keyed by SessionID
	Upsert(ctx context.Context, session *models.OnlineSession) error
	// DeleteOlderThan removes rows last seen before cutoff and returns how many
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// All returns every remaining row
	All(ctx context.Context) ([]models.OnlineSession, error)
}

// GormStore keeps sessions in the online_sessions table
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Upsert(ctx context.Context, session *models.OnlineSession) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "user_type", "current_page", "last_seen_at", "user_agent", "ip_hash"}),
	}).Create(session).Error
	if err != nil {
		return apierrors.Upstream("presence store", err)
	}
	return nil
}

func (s *GormStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("last_seen_at < ?", cutoff).Delete(&models.OnlineSession{})
	if res.Error != nil {
		return 0, apierrors.Upstream("presence store", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) All(ctx context.Context) ([]models.OnlineSession, error) {
	var sessions []models.OnlineSession
	if err := s.db.WithContext(ctx).Order("last_seen_at DESC").Find(&sessions).Error; err != nil {
		return nil, apierrors.Upstream("presence store", err)
	}
	return sessions, nil
}

// MemoryStore is a process-local Store for single-instance deployments and tests
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.OnlineSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.OnlineSession)}
}

func (s *MemoryStore) Upsert(ctx context.Context, session *models.OnlineSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SessionID] = *session
	return nil
}

func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, sess := range s.sessions {
		if sess.LastSeenAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) All(ctx context.Context) ([]models.OnlineSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OnlineSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	return out, nil
}
