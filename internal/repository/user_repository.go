package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/prohub/nexus/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
)

// UserRepository handles all database operations for users
type UserRepository interface {
	// User CRUD
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// Roles
	GetRole(ctx context.Context, userID string) (models.UserRole, error)
	SetRole(ctx context.Context, userID string, role models.UserRole) error

	// Batched lookups
	GetUsers(ctx context.Context, userIDs []string) ([]*models.User, error)
	GetUsernames(ctx context.Context, userIDs []string) (map[string]string, error)
	GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)

	// Activity
	TouchLastActive(ctx context.Context, userID string) error

	// Stats
	GetTotalUserCount(ctx context.Context) (int64, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateUser creates a new user
func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Create(user).Error
}

// GetUser gets a user by ID
func (r *userRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByEmail gets a user by email (case-insensitive)
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByUsername gets a user by username
func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", username).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateUser updates a user
func (r *userRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Save(user).Error
}

// GetRole returns the stored role. Unknown role values read as newbie.
func (r *userRepository) GetRole(ctx context.Context, userID string) (models.UserRole, error) {
	var roles []models.UserRole
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Limit(1).
		Pluck("role", &roles).Error
	if err != nil {
		return "", err
	}
	if len(roles) == 0 {
		return "", ErrUserNotFound
	}
	if !roles[0].Valid() {
		return models.RoleNewbie, nil
	}
	return roles[0], nil
}

// SetRole changes a user's role
func (r *userRepository) SetRole(ctx context.Context, userID string, role models.UserRole) error {
	if !role.Valid() {
		return ErrInvalidInput
	}
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetUsers gets multiple users by IDs
func (r *userRepository) GetUsers(ctx context.Context, userIDs []string) ([]*models.User, error) {
	var users []*models.User
	if len(userIDs) == 0 {
		return users, nil
	}

	err := r.db.WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&users).Error

	return users, err
}

// GetUsernames maps user ids to usernames; unknown ids are omitted
func (r *userRepository) GetUsernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	users, err := r.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

// GetDisplayNames maps user ids to display names, falling back to the username
func (r *userRepository) GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	users, err := r.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = strings.TrimSpace(u.Name())
	}
	return names, nil
}

// TouchLastActive records that the user was seen just now
func (r *userRepository) TouchLastActive(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_active_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// GetTotalUserCount gets total user count
func (r *userRepository) GetTotalUserCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Count(&count).Error

	return count, err
}
