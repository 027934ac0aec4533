package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// UserRepository defines data access for users and their refresh tokens.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, page models.PageRequest) ([]models.User, int64, error)
	RecordFailedLogin(ctx context.Context, id uuid.UUID, threshold int, lockoutEnd time.Time) error
	SetPaymentCustomerID(ctx context.Context, id uuid.UUID, customerID string) error

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string, at time.Time) error
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *database.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *database.DB) *GORMUserRepository {
	return &GORMUserRepository{db: db}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	user.Version = 1
	if err := r.db.Conn(ctx).Create(user).Error; err != nil {
		return translateError("user", err)
	}
	return nil
}

func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	expected := user.Version
	user.Version++
	if err := saveVersioned(r.db.Conn(ctx), "user", user, user.ID, expected); err != nil {
		user.Version = expected
		return err
	}
	return nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.Conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translateError(fmt.Sprintf("user %s", id), err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email, compared case-insensitively.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.Conn(ctx).First(&user, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translateError(fmt.Sprintf("user with email %s", email), err)
	}
	return &user, nil
}

func (r *GORMUserRepository) List(ctx context.Context, page models.PageRequest) ([]models.User, int64, error) {
	var (
		users []models.User
		total int64
	)
	if err := r.db.Conn(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, translateError("users", err)
	}
	err := r.db.Conn(ctx).Order("created_at ASC").Offset(page.Offset()).Limit(page.PageSize).Find(&users).Error
	if err != nil {
		return nil, 0, translateError("users", err)
	}
	return users, total, nil
}

// RecordFailedLogin counts a failed login in a single statement so
// concurrent attempts are never lost. Reaching threshold sets lockoutEnd and
// resets the counter.
func (r *GORMUserRepository) RecordFailedLogin(ctx context.Context, id uuid.UUID, threshold int, lockoutEnd time.Time) error {
	err := r.db.Conn(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"failed_login_attempts": gorm.Expr("CASE WHEN failed_login_attempts + 1 >= ? THEN 0 ELSE failed_login_attempts + 1 END", threshold),
			"lockout_end":           gorm.Expr("CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE lockout_end END", threshold, lockoutEnd),
		}).Error
	return translateError(fmt.Sprintf("user %s", id), err)
}

// SetPaymentCustomerID stores the provider customer of a user unless one is
// already recorded.
func (r *GORMUserRepository) SetPaymentCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	err := r.db.Conn(ctx).Model(&models.User{}).
		Where("id = ? AND payment_customer_id IS NULL", id).
		UpdateColumn("payment_customer_id", customerID).Error
	return translateError(fmt.Sprintf("user %s", id), err)
}

func (r *GORMUserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.Conn(ctx).Create(token).Error; err != nil {
		return translateError("refresh token", err)
	}
	return nil
}

func (r *GORMUserRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := r.db.Conn(ctx).First(&rt, "token = ?", token).Error; err != nil {
		return nil, translateError("refresh token", err)
	}
	return &rt, nil
}

func (r *GORMUserRepository) RevokeRefreshToken(ctx context.Context, token string, at time.Time) error {
	err := r.db.Conn(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", at).Error
	return translateError("refresh token", err)
}

func (r *GORMUserRepository) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID, at time.Time) error {
	err := r.db.Conn(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at).Error
	return translateError("refresh tokens", err)
}
