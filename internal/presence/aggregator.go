// Package presence tracks who is currently on the forum. Every heartbeat
// refreshes the caller's session, evicts stale sessions and recounts the rest.
package presence

import (
	"context"
	"strings"
	"time"

	apierrors "github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/prohub/nexus/backend/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultSessionTTL   = 5 * time.Minute
	DefaultVisibleLimit = 20
)

// ClientSchedule tells clients how often to send heartbeats
type ClientSchedule struct {
	HeartbeatInterval time.Duration `json:"-"`
	SearchTTL         time.Duration `json:"-"`
	SessionTTL        time.Duration `json:"-"`

	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds"`
	SearchTTLSeconds         int `json:"search_ttl_seconds"`
	SessionTTLSeconds        int `json:"session_ttl_seconds"`
}

func newClientSchedule(sessionTTL time.Duration) ClientSchedule {
	s := ClientSchedule{
		HeartbeatInterval: 30 * time.Second,
		SearchTTL:         35 * time.Second,
		SessionTTL:        sessionTTL,
	}
	s.HeartbeatIntervalSeconds = int(s.HeartbeatInterval / time.Second)
	s.SearchTTLSeconds = int(s.SearchTTL / time.Second)
	s.SessionTTLSeconds = int(s.SessionTTL / time.Second)
	return s
}

// UsernameResolver maps user ids to usernames in one lookup
type UsernameResolver interface {
	GetUsernames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Publisher receives the counts computed by each heartbeat
type Publisher interface {
	PublishCounts(counts OnlineCounts)
}

// HeartbeatInput is one client liveness report
type HeartbeatInput struct {
	SessionID   string
	UserID      *string
	CurrentPage string
	UserAgent   string
	SearchQuery *string
}

// OnlineCounts is always recomputed from the store
type OnlineCounts struct {
	Users  int `json:"users"`
	Guests int `json:"guests"`
	Robots int `json:"robots"`
	Total  int `json:"total"`
}

// OnlineUserView is one displayed session
type OnlineUserView struct {
	UserID      *string            `json:"user_id"`
	Username    string             `json:"username,omitempty"`
	UserType    models.VisitorType `json:"user_type"`
	CurrentPage string             `json:"current_page"`
	SearchQuery string             `json:"search_query,omitempty"`
	LastSeenAt  time.Time          `json:"last_seen_at"`
}

// Snapshot is the heartbeat response
type Snapshot struct {
	Counts      OnlineCounts     `json:"counts"`
	OnlineUsers []OnlineUserView `json:"online_users"`
}

// Config tunes the aggregator; zero values fall back to the defaults
type Config struct {
	SessionTTL   time.Duration
	VisibleLimit int
	// StoreName labels eviction metrics
	StoreName string
}

// Aggregator maintains the live session table through a Store
type Aggregator struct {
	store        Store
	names        UsernameResolver
	publisher    Publisher
	sessionTTL   time.Duration
	visibleLimit int
	storeName    string
	now          func() time.Time
}

// NewAggregator creates an aggregator; names may be nil
func NewAggregator(store Store, names UsernameResolver, cfg Config) *Aggregator {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.VisibleLimit <= 0 {
		cfg.VisibleLimit = DefaultVisibleLimit
	}
	if cfg.StoreName == "" {
		cfg.StoreName = "unknown"
	}
	return &Aggregator{
		store:        store,
		names:        names,
		sessionTTL:   cfg.SessionTTL,
		visibleLimit: cfg.VisibleLimit,
		storeName:    cfg.StoreName,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher registers a receiver for fresh counts
func (a *Aggregator) SetPublisher(p Publisher) {
	a.publisher = p
}

// Schedule returns the client heartbeat cadence
func (a *Aggregator) Schedule() ClientSchedule {
	return newClientSchedule(a.sessionTTL)
}

// Classify returns the visitor type. A user id always wins over a robot user agent.
func Classify(userID *string, userAgent string) models.VisitorType {
	if userID != nil && *userID != "" {
		return models.VisitorUser
	}
	if IsRobot(userAgent) {
		return models.VisitorRobot
	}
	return models.VisitorGuest
}

// Heartbeat records the session, evicts stale ones and returns the current view
func (a *Aggregator) Heartbeat(ctx context.Context, in HeartbeatInput) (*Snapshot, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, apierrors.ValidationError("session_id", "session id is required")
	}

	userID := in.UserID
	if userID != nil && *userID == "" {
		userID = nil
	}
	visitorType := Classify(userID, in.UserAgent)
	now := a.now()

	session := &models.OnlineSession{
		SessionID:   sessionID,
		UserID:      userID,
		UserType:    visitorType,
		CurrentPage: EncodePage(in.CurrentPage, in.SearchQuery),
		LastSeenAt:  now,
		UserAgent:   in.UserAgent,
		IPHash:      SessionHash(sessionID),
	}
	if err := a.store.Upsert(ctx, session); err != nil {
		return nil, err
	}
	metrics.Get().PresenceHeartbeatsTotal.WithLabelValues(string(visitorType)).Inc()

	evicted, err := a.store.DeleteOlderThan(ctx, now.Add(-a.sessionTTL))
	if err != nil {
		return nil, err
	}
	if evicted > 0 {
		metrics.Get().PresenceEvictedTotal.WithLabelValues(a.storeName).Add(float64(evicted))
		logger.Log.Debug("Evicted stale presence sessions", zap.Int64("count", evicted))
	}

	sessions, err := a.store.All(ctx)
	if err != nil {
		return nil, err
	}

	counts := countSessions(sessions)
	a.recordCounts(counts)

	snapshot := &Snapshot{
		Counts:      counts,
		OnlineUsers: a.visibleSessions(ctx, sessions),
	}

	if a.publisher != nil {
		a.publisher.PublishCounts(counts)
	}
	return snapshot, nil
}

func countSessions(sessions []models.OnlineSession) OnlineCounts {
	var c OnlineCounts
	for _, s := range sessions {
		switch s.UserType {
		case models.VisitorUser:
			c.Users++
		case models.VisitorRobot:
			c.Robots++
		default:
			c.Guests++
		}
	}
	c.Total = c.Users + c.Guests + c.Robots
	return c
}

func (a *Aggregator) visibleSessions(ctx context.Context, sessions []models.OnlineSession) []OnlineUserView {
	if len(sessions) > a.visibleLimit {
		sessions = sessions[:a.visibleLimit]
	}

	var userIDs []string
	seen := make(map[string]bool)
	for _, s := range sessions {
		if s.UserID != nil && !seen[*s.UserID] {
			seen[*s.UserID] = true
			userIDs = append(userIDs, *s.UserID)
		}
	}

	usernames := map[string]string{}
	if len(userIDs) > 0 && a.names != nil {
		resolved, err := a.names.GetUsernames(ctx, userIDs)
		if err != nil {
			logger.Log.Warn("Failed to resolve usernames for presence", zap.Error(err))
		} else {
			usernames = resolved
		}
	}

	views := make([]OnlineUserView, 0, len(sessions))
	for _, s := range sessions {
		page, query := DecodePage(s.CurrentPage)
		view := OnlineUserView{
			UserID:      s.UserID,
			UserType:    s.UserType,
			CurrentPage: page,
			SearchQuery: query,
			LastSeenAt:  s.LastSeenAt,
		}
		if s.UserID != nil {
			view.Username = usernames[*s.UserID]
		}
		views = append(views, view)
	}
	return views
}

func (a *Aggregator) recordCounts(c OnlineCounts) {
	m := metrics.Get()
	m.PresenceOnline.WithLabelValues(string(models.VisitorUser)).Set(float64(c.Users))
	m.PresenceOnline.WithLabelValues(string(models.VisitorGuest)).Set(float64(c.Guests))
	m.PresenceOnline.WithLabelValues(string(models.VisitorRobot)).Set(float64(c.Robots))
}
