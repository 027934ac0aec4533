package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shopilent/internal/config"
	"shopilent/internal/models"
	"shopilent/internal/services"
)

const testJWTSecret = "test_jwt_secret_that_is_long_enough"

func newAuthService() (*services.AuthService, *MockUserRepository, *MockEventWriter) {
	mockRepo := new(MockUserRepository)
	events := new(MockEventWriter)
	authService := services.NewAuthService(mockRepo, fakeTx{}, events, config.JWTConfig{
		Secret:          testJWTSecret,
		Issuer:          "shopilent-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	return authService, mockRepo, events
}

func hashed(t *testing.T, password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	authService, mockRepo, events := newAuthService()

	cmd := services.RegisterCommand{
		Email:     "Test@Example.com",
		Password:  "password123",
		FirstName: "Test",
		LastName:  "User",
	}

	// Test successful registration
	mockRepo.On("GetByEmail", "test@example.com").Return(nil, models.NotFound("user", "test@example.com")).Once()
	mockRepo.On("Create", mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "test@example.com" && u.Role == models.RoleCustomer && u.IsActive &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")) == nil
	})).Return(nil).Once()
	mockRepo.On("CreateRefreshToken", mock.AnythingOfType("*models.RefreshToken")).Return(nil).Once()

	result, err := authService.Register(ctx, cmd)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
	assert.Equal(t, []string{models.EventUserCreated}, events.Types)
	mockRepo.AssertExpectations(t)

	// Test email already registered
	mockRepo.On("GetByEmail", "test@example.com").Return(&models.User{Email: "test@example.com"}, nil).Once()
	_, err = authService.Register(ctx, cmd)
	assert.True(t, errors.Is(err, models.ErrAlreadyExists))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterRejectsWeakPasswords(t *testing.T) {
	authService, _, _ := newAuthService()

	for _, password := range []string{"short1", "allletters", "12345678"} {
		_, err := authService.Register(context.Background(), services.RegisterCommand{
			Email: "a@example.com", Password: password, FirstName: "A", LastName: "B",
		})
		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr), password)
		assert.Contains(t, verr.Fields, "password")
	}
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	authService, mockRepo, _ := newAuthService()

	user := &models.User{
		Entity:       models.Entity{ID: uuid.New()},
		Email:        "test@example.com",
		PasswordHash: hashed(t, "password123"),
		Role:         models.RoleManager,
		IsActive:     true,
		Version:      1,
	}

	// Test successful login
	mockRepo.On("GetByEmail", "test@example.com").Return(user, nil).Once()
	mockRepo.On("Update", user).Return(nil).Once()
	mockRepo.On("CreateRefreshToken", mock.AnythingOfType("*models.RefreshToken")).Return(nil).Once()

	result, err := authService.Login(ctx, "test@example.com", "password123")
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt)

	// Validate the token structure
	parsedToken, err := jwt.Parse(result.Tokens.AccessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), claims["user_id"])
	assert.Equal(t, "manager", claims["role"])
	assert.Equal(t, "shopilent-test", claims["iss"])
	mockRepo.AssertExpectations(t)

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByEmail", "test@example.com").Return(user, nil).Once()
	mockRepo.On("RecordFailedLogin", user.ID, models.MaxFailedLoginAttempts, mock.AnythingOfType("time.Time")).Return(nil).Once()
	_, err = authService.Login(ctx, "test@example.com", "wrongpassword1")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNumberOfCalls(t, "Update", 1)

	// Test invalid credentials (user not found)
	mockRepo.On("GetByEmail", "nobody@example.com").Return(nil, models.NotFound("user", "nobody@example.com")).Once()
	_, err = authService.Login(ctx, "nobody@example.com", "password123")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestAuthService_LoginLocksOutAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	authService, mockRepo, _ := newAuthService()

	user := &models.User{
		Entity:       models.Entity{ID: uuid.New()},
		Email:        "test@example.com",
		PasswordHash: hashed(t, "password123"),
		Role:         models.RoleCustomer,
		IsActive:     true,
	}
	mockRepo.On("GetByEmail", "test@example.com").Return(user, nil)
	// Stands in for the counter the database keeps.
	mockRepo.On("RecordFailedLogin", user.ID, models.MaxFailedLoginAttempts, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			user.FailedLoginAttempts++
			if user.FailedLoginAttempts >= args.Int(1) {
				end := args.Get(2).(time.Time)
				user.LockoutEnd = &end
				user.FailedLoginAttempts = 0
			}
		}).Return(nil)

	for i := 0; i < models.MaxFailedLoginAttempts; i++ {
		_, err := authService.Login(ctx, "test@example.com", "wrong")
		require.True(t, errors.Is(err, models.ErrUnauthorized))
	}
	require.NotNil(t, user.LockoutEnd)
	mockRepo.AssertNumberOfCalls(t, "RecordFailedLogin", models.MaxFailedLoginAttempts)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything)

	_, err := authService.Login(ctx, "test@example.com", "password123")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	assert.Contains(t, err.Error(), "locked")
}

func TestAuthService_LoginInactiveUser(t *testing.T) {
	authService, mockRepo, _ := newAuthService()
	user := &models.User{
		Entity:       models.Entity{ID: uuid.New()},
		Email:        "test@example.com",
		PasswordHash: hashed(t, "password123"),
		IsActive:     false,
	}
	mockRepo.On("GetByEmail", "test@example.com").Return(user, nil).Once()

	_, err := authService.Login(context.Background(), "test@example.com", "password123")
	assert.True(t, errors.Is(err, models.ErrForbidden))
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	authService, mockRepo, _ := newAuthService()

	user := &models.User{Entity: models.Entity{ID: uuid.New()}, Email: "a@example.com", IsActive: true}
	stored := &models.RefreshToken{UserID: user.ID, Token: "old", ExpiresAt: time.Now().Add(time.Hour)}

	mockRepo.On("GetRefreshToken", "old").Return(stored, nil).Once()
	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	mockRepo.On("RevokeRefreshToken", "old").Return(nil).Once()
	mockRepo.On("CreateRefreshToken", mock.AnythingOfType("*models.RefreshToken")).Return(nil).Once()

	result, err := authService.Refresh(ctx, "old")
	require.NoError(t, err)
	assert.NotEqual(t, "old", result.Tokens.RefreshToken)
	mockRepo.AssertExpectations(t)

	revokedAt := time.Now()
	mockRepo.On("GetRefreshToken", "revoked").Return(&models.RefreshToken{UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour), RevokedAt: &revokedAt}, nil).Once()
	_, err = authService.Refresh(ctx, "revoked")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	mockRepo.On("GetRefreshToken", "unknown").Return(nil, models.NotFound("refresh token", "unknown")).Once()
	_, err = authService.Refresh(ctx, "unknown")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	authService, mockRepo, _ := newAuthService()
	user := &models.User{Entity: models.Entity{ID: uuid.New()}, PasswordHash: hashed(t, "password123")}

	mockRepo.On("GetByID", user.ID).Return(user, nil)

	err := authService.ChangePassword(ctx, user.ID, "wrong", "newpassword1")
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "current_password")

	err = authService.ChangePassword(ctx, user.ID, "password123", "password123")
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "new_password")

	mockRepo.On("Update", user).Return(nil).Once()
	mockRepo.On("RevokeAllRefreshTokens", user.ID).Return(nil).Once()
	require.NoError(t, authService.ChangePassword(ctx, user.ID, "password123", "newpassword1"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpassword1")))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService, _, _ := newAuthService()
	userID := uuid.New()

	// Generate a valid token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"email":   "a@example.com",
		"role":    "admin",
		"iss":     "shopilent-test",
		"exp":     jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	validTokenString, _ := token.SignedString([]byte(testJWTSecret))

	// Test valid token
	claims, err := authService.ValidateToken(validTokenString)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	// Test malformed token
	_, err = authService.ValidateToken("invalid.token.string")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	assert.Contains(t, err.Error(), "invalid token")

	// Test expired token
	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"iss":     "shopilent-test",
		"exp":     jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expiredToken.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredTokenString)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	// Test token signed with another secret
	forged, _ := token.SignedString([]byte("another_secret"))
	_, err = authService.ValidateToken(forged)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}
