package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/presence"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultPassword = "password123"

// Counts sizes a seeding run
type Counts struct {
	Users     int
	Topics    int
	Posts     int
	Resources int
	Videos    int
	Sessions  int
	// HiddenRatio is the share of topics hidden by a moderator
	HiddenRatio float64
}

// DevCounts is the development data set
var DevCounts = Counts{
	Users:       60,
	Topics:      150,
	Posts:       600,
	Resources:   30,
	Videos:      30,
	Sessions:    40,
	HiddenRatio: 0.05,
}

// Seeder handles database seeding operations
type Seeder struct {
	db           *gorm.DB
	passwordHash string
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic forum data
func (s *Seeder) SeedDev() error {
	return s.Seed(DevCounts)
}

// Seed creates users, content, moderation history and live sessions
func (s *Seeder) Seed(counts Counts) error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	users, err := s.seedUsers(counts.Users)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if len(users) == 0 {
		return fmt.Errorf("no users available")
	}

	log("Creating topics...")
	topics, err := s.seedTopics(users, counts.Topics)
	if err != nil {
		return fmt.Errorf("failed to seed topics: %w", err)
	}

	log("Creating posts...")
	if err := s.seedPosts(users, topics, counts.Posts); err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating resources and videos...")
	if err := s.seedResources(users, counts.Resources); err != nil {
		return fmt.Errorf("failed to seed resources: %w", err)
	}
	if err := s.seedVideos(users, counts.Videos); err != nil {
		return fmt.Errorf("failed to seed videos: %w", err)
	}

	log("Creating moderation history...")
	if err := s.seedModeration(users, topics, counts.HiddenRatio); err != nil {
		return fmt.Errorf("failed to seed moderation history: %w", err)
	}

	log("Creating presence sessions...")
	if err := s.seedSessions(users, counts.Sessions); err != nil {
		return fmt.Errorf("failed to seed presence sessions: %w", err)
	}

	return nil
}

// SeedTest seeds the test database with one account per role
func (s *Seeder) SeedTest() error {
	specs := []struct {
		username    string
		displayName string
		role        models.UserRole
	}{
		{"alice", "Alice Smith", models.RoleAdmin},
		{"bob", "Bob Johnson", models.RoleModerator},
		{"charlie", "Charlie Brown", models.RolePro},
		{"diana", "Diana Prince", models.RoleMember},
		{"eve", "Eve Wilson", models.RoleNewbie},
	}

	var users []models.User
	for _, spec := range specs {
		email := spec.username + "@example.com"
		var user models.User
		err := s.db.Where("username = ? OR email = ?", spec.username, email).First(&user).Error
		if err == nil {
			users = append(users, user)
			continue
		}

		hash, err := s.hash()
		if err != nil {
			return err
		}
		user = models.User{
			Email:        email,
			Username:     spec.username,
			DisplayName:  spec.displayName,
			Role:         spec.role,
			PasswordHash: &hash,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", spec.username, err)
		}
		users = append(users, user)
	}

	topics, err := s.seedTopics(users, 5)
	if err != nil {
		return fmt.Errorf("failed to seed topics: %w", err)
	}
	if err := s.seedPosts(users, topics, 10); err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}
	return nil
}

// Clean removes all seed data (use with caution!)
func (s *Seeder) Clean() error {
	tables := []string{"notifications", "online_sessions", "moderation_logs", "posts", "topics", "resources", "videos", "users"}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) hash() (string, error) {
	if s.passwordHash != "" {
		return s.passwordHash, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	s.passwordHash = string(hashed)
	return s.passwordHash, nil
}

// seedUsers creates users with a role mix weighted towards members
func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	var seedUserCount int64
	s.db.Model(&models.User{}).Where("email LIKE ?", "%@example.com").Count(&seedUserCount)
	if seedUserCount >= int64(count) {
		var users []models.User
		if err := s.db.Find(&users).Error; err != nil {
			return nil, err
		}
		logger.Log.Info("Found existing users, skipping creation",
			zap.Int("total_users", len(users)),
			zap.Int64("seed_users", seedUserCount))
		return users, nil
	}

	hash, err := s.hash()
	if err != nil {
		return nil, err
	}

	roles := []models.UserRole{
		models.RoleNewbie, models.RoleNewbie, models.RoleMember, models.RoleMember,
		models.RoleMember, models.RoleMember, models.RolePro, models.RoleEditor,
	}

	users := make([]models.User, 0, count)
	seen := make(map[string]bool)
	for len(users) < count {
		username := strings.ToLower(gofakeit.Username())
		if seen[username] {
			continue
		}
		seen[username] = true

		var existing int64
		s.db.Model(&models.User{}).Where("LOWER(username) = ?", username).Count(&existing)
		if existing > 0 {
			continue
		}

		role := roles[rand.Intn(len(roles))]
		if len(users) == 0 {
			role = models.RoleModerator
		}
		lastActive := gofakeit.DateRange(time.Now().AddDate(0, -1, 0), time.Now())

		user := models.User{
			Email:        username + "@example.com",
			Username:     username,
			DisplayName:  gofakeit.Name(),
			Role:         role,
			Reputation:   rand.Intn(500),
			PasswordHash: &hash,
			LastActiveAt: &lastActive,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	logger.Log.Info("Created users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Seeder) seedTopics(users []models.User, count int) ([]models.Topic, error) {
	categories := []string{"general", "production", "mixing", "gear", "jobs", "showcase"}
	topics := make([]models.Topic, 0, count)
	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]
		createdAt := gofakeit.DateRange(time.Now().AddDate(0, -3, 0), time.Now())
		topic := models.Topic{
			UserID:     author.ID,
			CategoryID: categories[rand.Intn(len(categories))],
			Title:      title(),
			Content:    paragraph(rand.Intn(4) + 2),
			IsPinned:   rand.Float32() < 0.02,
			ViewCount:  rand.Intn(2000),
			CreatedAt:  createdAt,
		}
		if err := s.db.Create(&topic).Error; err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	logger.Log.Info("Created topics", zap.Int("count", len(topics)))
	return topics, nil
}

// seedPosts creates replies; about a fifth quote an earlier message
func (s *Seeder) seedPosts(users []models.User, topics []models.Topic, count int) error {
	if len(topics) == 0 {
		return nil
	}
	for i := 0; i < count; i++ {
		topic := topics[rand.Intn(len(topics))]
		author := users[rand.Intn(len(users))]

		content := paragraph(rand.Intn(3) + 1)
		if rand.Float32() < 0.2 {
			content = fmt.Sprintf("[quote=%s]%s[/quote]%s", gofakeit.Username(), gofakeit.HipsterSentence(), content)
		}

		post := models.Post{
			TopicID:   topic.ID,
			UserID:    author.ID,
			Content:   content,
			CreatedAt: gofakeit.DateRange(topic.CreatedAt, time.Now()),
		}
		if err := s.db.Create(&post).Error; err != nil {
			return err
		}
	}
	logger.Log.Info("Created posts", zap.Int("count", count))
	return nil
}

func (s *Seeder) seedResources(users []models.User, count int) error {
	for i := 0; i < count; i++ {
		r := models.Resource{
			UserID:      users[rand.Intn(len(users))].ID,
			Title:       title(),
			Description: paragraph(1),
			URL:         fmt.Sprintf("https://github.com/%s/%s", gofakeit.Username(), gofakeit.Word()),
		}
		if err := s.db.Create(&r).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedVideos(users []models.User, count int) error {
	for i := 0; i < count; i++ {
		v := models.Video{
			UserID:      users[rand.Intn(len(users))].ID,
			Title:       title(),
			Description: paragraph(1),
			VideoURL:    "https://youtube.com/watch?v=" + strings.ReplaceAll(gofakeit.UUID(), "-", "")[:11],
		}
		if err := s.db.Create(&v).Error; err != nil {
			return err
		}
	}
	return nil
}

// seedModeration hides a share of topics with a moderator audit entry,
// and restores some of them again
func (s *Seeder) seedModeration(users []models.User, topics []models.Topic, ratio float64) error {
	var moderators []models.User
	for _, u := range users {
		if u.Role.AtLeast(models.RoleModerator) {
			moderators = append(moderators, u)
		}
	}
	if len(moderators) == 0 || ratio <= 0 {
		return nil
	}

	reasons := []string{"spam", "off-topic", "advertisement", "duplicate thread", "personal attack"}
	hidden := 0
	for _, topic := range topics {
		if rand.Float64() >= ratio {
			continue
		}
		mod := moderators[rand.Intn(len(moderators))]
		reason := reasons[rand.Intn(len(reasons))]
		at := gofakeit.DateRange(topic.CreatedAt, time.Now())

		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Topic{}).Where("id = ?", topic.ID).Update("is_hidden", true).Error; err != nil {
				return err
			}
			entry := models.ModerationLog{
				ContentType: models.ContentTopic,
				ContentID:   topic.ID,
				Action:      models.ModerationActionHide,
				Reason:      &reason,
				ModeratorID: &mod.ID,
				CreatedAt:   at,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			if rand.Float32() < 0.25 {
				if err := tx.Model(&models.Topic{}).Where("id = ?", topic.ID).Update("is_hidden", false).Error; err != nil {
					return err
				}
				return tx.Create(&models.ModerationLog{
					ContentType: models.ContentTopic,
					ContentID:   topic.ID,
					Action:      models.ModerationActionUnhide,
					ModeratorID: &mod.ID,
					CreatedAt:   at.Add(time.Hour),
				}).Error
			}
			return nil
		})
		if err != nil {
			return err
		}
		hidden++
	}
	logger.Log.Info("Created moderation history", zap.Int("hidden_topics", hidden))
	return nil
}

func (s *Seeder) seedSessions(users []models.User, count int) error {
	agents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		"Mozilla/5.0 (compatible; YandexBot/3.0; +http://yandex.com/bots)",
	}
	pages := []string{"/", "/forum", "/resources", "/videos", "/search"}

	for i := 0; i < count; i++ {
		sessionID := gofakeit.UUID()
		agent := agents[rand.Intn(len(agents))]

		var userID *string
		if rand.Float32() < 0.4 {
			id := users[rand.Intn(len(users))].ID
			userID = &id
		}

		page := pages[rand.Intn(len(pages))]
		var query *string
		if page == "/search" {
			q := gofakeit.Word()
			query = &q
		}

		session := models.OnlineSession{
			SessionID:   sessionID,
			UserID:      userID,
			UserType:    presence.Classify(userID, agent),
			CurrentPage: presence.EncodePage(page, query),
			LastSeenAt:  time.Now().UTC().Add(-time.Duration(rand.Intn(240)) * time.Second),
			UserAgent:   agent,
			IPHash:      presence.SessionHash(sessionID),
		}
		if err := s.db.Create(&session).Error; err != nil {
			return err
		}
	}
	return nil
}

func title() string {
	t := strings.TrimSuffix(gofakeit.HipsterSentence(), ".")
	if words := strings.Fields(t); len(words) > 8 {
		t = strings.Join(words[:8], " ")
	}
	return t
}

func paragraph(sentences int) string {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = gofakeit.HipsterSentence()
	}
	return strings.Join(parts, " ")
}
