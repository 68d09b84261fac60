package seed

import (
	"fmt"
	"testing"
	"time"

	"github.com/prohub/nexus/backend/internal/database"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type SeederTestSuite struct {
	suite.Suite
	db     *gorm.DB
	seeder *Seeder
}

func (s *SeederTestSuite) SetupTest() {
	dsn := fmt.Sprintf("file:seed_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(database.MigrateDB(db))

	s.db = db
	s.seeder = NewSeeder(db)
}

func (s *SeederTestSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *SeederTestSuite) count(model interface{}) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Count(&n).Error)
	return n
}

func (s *SeederTestSuite) TestSeed() {
	err := s.seeder.Seed(Counts{
		Users:       6,
		Topics:      10,
		Posts:       20,
		Resources:   2,
		Videos:      2,
		Sessions:    5,
		HiddenRatio: 1,
	})
	s.Require().NoError(err)

	s.Equal(int64(6), s.count(&models.User{}))
	s.Equal(int64(10), s.count(&models.Topic{}))
	s.Equal(int64(20), s.count(&models.Post{}))
	s.Equal(int64(2), s.count(&models.Resource{}))
	s.Equal(int64(2), s.count(&models.Video{}))
	s.Equal(int64(5), s.count(&models.OnlineSession{}))

	// every topic was hidden at least once by the seeded moderator
	var hides int64
	s.db.Model(&models.ModerationLog{}).Where("action = ?", models.ModerationActionHide).Count(&hides)
	s.Equal(int64(10), hides)

	var moderators int64
	s.db.Model(&models.User{}).Where("role = ?", models.RoleModerator).Count(&moderators)
	s.GreaterOrEqual(moderators, int64(1))
}

func (s *SeederTestSuite) TestSeedTestIsIdempotent() {
	s.Require().NoError(s.seeder.SeedTest())
	s.Require().NoError(s.seeder.SeedTest())

	s.Equal(int64(5), s.count(&models.User{}))

	var bob models.User
	s.Require().NoError(s.db.Where("username = ?", "bob").First(&bob).Error)
	s.Equal(models.RoleModerator, bob.Role)
	s.NotNil(bob.PasswordHash)
}

func (s *SeederTestSuite) TestClean() {
	s.Require().NoError(s.seeder.SeedTest())
	s.Require().NoError(s.seeder.Clean())
	s.Zero(s.count(&models.Topic{}))
	s.Zero(s.count(&models.User{}))
}

func TestSeederTestSuite(t *testing.T) {
	suite.Run(t, new(SeederTestSuite))
}
