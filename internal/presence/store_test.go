package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prohub/nexus/backend/internal/database"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// StoreTestSuite runs the same contract against every Store implementation
type StoreTestSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
}

func (s *StoreTestSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func (s *StoreTestSuite) session(id string, seen time.Time) *models.OnlineSession {
	return &models.OnlineSession{
		SessionID:   id,
		UserType:    models.VisitorGuest,
		CurrentPage: "/",
		LastSeenAt:  seen,
		UserAgent:   "test",
		IPHash:      SessionHash(id),
	}
}

func (s *StoreTestSuite) TestUpsertReplaces() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	s.Require().NoError(s.store.Upsert(ctx, s.session("s1", now)))

	updated := s.session("s1", now.Add(time.Second))
	userID := "u1"
	updated.UserID = &userID
	updated.UserType = models.VisitorUser
	updated.CurrentPage = "/forum"
	s.Require().NoError(s.store.Upsert(ctx, updated))

	all, err := s.store.All(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(models.VisitorUser, all[0].UserType)
	s.Equal("/forum", all[0].CurrentPage)
	s.Require().NotNil(all[0].UserID)
	s.Equal("u1", *all[0].UserID)
	s.True(all[0].LastSeenAt.Equal(now.Add(time.Second)))
}

func (s *StoreTestSuite) TestDeleteOlderThan() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	s.Require().NoError(s.store.Upsert(ctx, s.session("old", now.Add(-10*time.Minute))))
	s.Require().NoError(s.store.Upsert(ctx, s.session("edge", now.Add(-5*time.Minute))))
	s.Require().NoError(s.store.Upsert(ctx, s.session("new", now)))

	removed, err := s.store.DeleteOlderThan(ctx, now.Add(-5*time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	all, err := s.store.All(ctx)
	s.Require().NoError(err)
	ids := make([]string, 0, len(all))
	for _, sess := range all {
		ids = append(ids, sess.SessionID)
	}
	s.ElementsMatch([]string{"edge", "new"}, ids)
}

func (s *StoreTestSuite) TestAllEmpty() {
	all, err := s.store.All(context.Background())
	s.Require().NoError(err)
	s.Empty(all)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{newStore: func(t *testing.T) Store {
		return NewMemoryStore()
	}})
}

func TestGormStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{newStore: func(t *testing.T) Store {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { sqlDB.Close() })
		require.NoError(t, database.MigrateDB(db))
		return NewGormStore(db)
	}})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping redis store tests: redis not available (%v)", err)
	}
	defer client.Close()

	suite.Run(t, &StoreTestSuite{newStore: func(t *testing.T) Store {
		require.NoError(t, client.FlushDB(context.Background()).Err())
		return NewRedisStore(client, DefaultSessionTTL)
	}})
}

func TestPageEncoding(t *testing.T) {
	q := "reverb"
	assert.Equal(t, "/search|search:reverb", EncodePage("/search", &q))
	assert.Equal(t, "/forum", EncodePage("/forum", nil))
	blank := "   "
	assert.Equal(t, "/forum", EncodePage("/forum", &blank))

	page, query := DecodePage("/search|search:a|search:b")
	assert.Equal(t, "/search", page)
	assert.Equal(t, "a|search:b", query)

	page, query = DecodePage("/forum")
	assert.Equal(t, "/forum", page)
	assert.Empty(t, query)
}

func TestSessionHash(t *testing.T) {
	h := SessionHash("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, SessionHash("abc"))
	assert.NotEqual(t, h, SessionHash("abd"))
}

func TestIsRobot(t *testing.T) {
	robots := []string{
		googleUA,
		"Mozilla/5.0 (compatible; YandexBot/3.0; +http://yandex.com/bots)",
		"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)",
		"facebookexternalhit/1.1",
		"python-requests/2.31.0",
		"SomeCustom crawler v1",
	}
	for _, ua := range robots {
		assert.True(t, IsRobot(ua), ua)
	}

	humans := []string{
		browserUA,
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148 Safari/604.1",
		"",
		"Mozilla/5.0 (compatible; robotics-fan browser)",
	}
	for _, ua := range humans {
		assert.False(t, IsRobot(ua), ua)
	}
}
