package moderation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prohub/nexus/backend/internal/database"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.MigrateDB(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{
		Email:       username + "@example.com",
		Username:    username,
		DisplayName: username,
		Role:        role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createTopic(t *testing.T, db *gorm.DB, author *models.User, title, content string, createdAt time.Time) *models.Topic {
	t.Helper()
	topic := &models.Topic{
		UserID:    author.ID,
		Title:     title,
		Content:   content,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(topic).Error)
	return topic
}

// stepClock returns strictly increasing timestamps
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []NotificationIntent
	err     error
}

func (n *recordingNotifier) Enqueue(intent NotificationIntent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.intents = append(n.intents, intent)
	return nil
}

func (n *recordingNotifier) sent() []NotificationIntent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NotificationIntent(nil), n.intents...)
}

type mapNames map[string]string

func (m mapNames) GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := m[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}
