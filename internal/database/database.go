package database

import (
	"fmt"
	"time"

	"github.com/prohub/nexus/backend/internal/config"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Open creates a configured gorm connection without touching the global
func Open(cfg config.DatabaseConfig, environment string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.URL)
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if environment == "development" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Use(telemetry.GORMPlugin()); err != nil {
		return nil, fmt.Errorf("failed to install telemetry plugin: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite serialises writers; one connection avoids "database is locked"
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// Initialize opens the connection and stores it in DB
func Initialize(cfg config.DatabaseConfig, environment string) error {
	db, err := Open(cfg, environment)
	if err != nil {
		return err
	}
	DB = db
	logger.Log.Info("Database connected", zap.String("driver", cfg.Driver))
	return nil
}

// AllModels lists every table owned by the service, in foreign key order
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Topic{},
		&models.Post{},
		&models.Resource{},
		&models.Video{},
		&models.ModerationLog{},
		&models.OnlineSession{},
		&models.Notification{},
	}
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return MigrateDB(DB)
}

// MigrateDB migrates the given connection
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		createPostgresIndexes(db)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// createPostgresIndexes adds indexes gorm tags cannot express
func createPostgresIndexes(db *gorm.DB) {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))",
		"CREATE INDEX IF NOT EXISTS idx_topics_hidden_created ON topics (is_hidden, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_posts_hidden_created ON posts (is_hidden, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_resources_hidden_created ON resources (is_hidden, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_videos_hidden_created ON videos (is_hidden, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_moderation_logs_content_created ON moderation_logs (content_type, content_id, created_at DESC)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("Could not create index", zap.String("sql", stmt), zap.Error(err))
		}
	}
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}
