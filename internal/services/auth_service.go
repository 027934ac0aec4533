package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"shopilent/internal/config"
	"shopilent/internal/models"
	"shopilent/internal/repositories"
	"shopilent/pkg/logger"
)

// RegisterCommand carries a sign-up request.
type RegisterCommand struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
}

// TokenPair is returned on register, login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResult is an authenticated user with fresh tokens.
type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens TokenPair    `json:"tokens"`
}

// Claims are the identity fields carried by an access token.
type Claims struct {
	UserID uuid.UUID
	Email  string
	Role   models.Role
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	tx         Transactor
	events     EventWriter
	jwtSecret  []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, tx Transactor, events EventWriter, cfg config.JWTConfig) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		tx:         tx,
		events:     events,
		jwtSecret:  []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
}

// validatePassword requires at least eight characters with a letter and a digit.
func validatePassword(field, password string) error {
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if len(password) < 8 || !letter || !digit {
		return models.NewValidationError(field, "must be at least 8 characters and contain a letter and a digit")
	}
	return nil
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, cmd RegisterCommand) (*AuthResult, error) {
	if err := validatePassword("password", cmd.Password); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		FirstName:    strings.TrimSpace(cmd.FirstName),
		LastName:     strings.TrimSpace(cmd.LastName),
		Phone:        strings.TrimSpace(cmd.Phone),
		Role:         models.RoleCustomer,
		IsActive:     true,
	}

	var result *AuthResult
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if existing, err := s.userRepo.GetByEmail(ctx, email); err == nil && existing != nil {
			return models.AlreadyExists("user", "email", email)
		} else if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}

		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to register user: %w", err)
		}
		if err := s.events.Add(ctx, models.UserEvent{Type: models.EventUserCreated, UserID: user.ID, Email: user.Email}); err != nil {
			return err
		}

		tokens, err := s.issueTokens(ctx, user)
		if err != nil {
			return err
		}
		result = &AuthResult{User: user, Tokens: tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "User registered", "user_id", user.ID)
	return result, nil
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", models.ErrUnauthorized)

// Login authenticates by email and password. Repeated failures lock the
// account for a while.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, models.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if user.IsLockedOut(now) {
		return nil, fmt.Errorf("account is locked until %s: %w", user.LockoutEnd.UTC().Format(time.RFC3339), models.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if err := s.userRepo.RecordFailedLogin(ctx, user.ID, models.MaxFailedLoginAttempts, now.Add(models.LockoutDuration)); err != nil {
			logger.Warn(ctx, "Failed to record failed login", "user_id", user.ID, "error", err)
		}
		return nil, errInvalidCredentials
	}

	if !user.IsActive {
		return nil, fmt.Errorf("account is disabled: %w", models.ErrForbidden)
	}

	var tokens TokenPair
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user.RecordSuccessfulLogin(now)
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
		tokens, err = s.issueTokens(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh rotates a refresh token into a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	var result *AuthResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		stored, err := s.userRepo.GetRefreshToken(ctx, refreshToken)
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("unknown refresh token: %w", models.ErrUnauthorized)
		}
		if err != nil {
			return err
		}
		now := s.now()
		if !stored.IsUsable(now) {
			return fmt.Errorf("refresh token expired or revoked: %w", models.ErrUnauthorized)
		}

		user, err := s.userRepo.GetByID(ctx, stored.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return fmt.Errorf("account is disabled: %w", models.ErrForbidden)
		}

		if err := s.userRepo.RevokeRefreshToken(ctx, refreshToken, now); err != nil {
			return err
		}
		tokens, err := s.issueTokens(ctx, user)
		if err != nil {
			return err
		}
		result = &AuthResult{User: user, Tokens: tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	err := s.userRepo.RevokeRefreshToken(ctx, refreshToken, s.now())
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return nil
}

// ChangePassword replaces the password and signs out every session.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return models.NewValidationError("current_password", "is incorrect")
	}
	if err := validatePassword("new_password", newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return models.NewValidationError("new_password", "must differ from the current password")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user.PasswordHash = string(hashed)
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
		if err := s.userRepo.RevokeAllRefreshTokens(ctx, user.ID, s.now()); err != nil {
			return err
		}
		return s.events.Add(ctx, models.UserEvent{Type: models.EventUserUpdated, UserID: user.ID, Email: user.Email})
	})
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (TokenPair, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"role":    string(user.Role),
		"iss":     s.issuer,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	})
	accessToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to generate token: %w", err)
	}

	refresh := &models.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString() + "." + uuid.NewString(),
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.userRepo.CreateRefreshToken(ctx, refresh); err != nil {
		return TokenPair{}, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresAt:    expiresAt,
	}, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v: %w", err, models.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", models.ErrUnauthorized)
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return nil, fmt.Errorf("invalid token issuer: %w", models.ErrUnauthorized)
	}

	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", models.ErrUnauthorized)
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &Claims{UserID: userID, Email: email, Role: models.Role(role)}, nil
}
