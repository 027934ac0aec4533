package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopilent/internal/cache"
	"shopilent/internal/models"
	"shopilent/internal/repositories"
)

// UpdateProfileCommand changes the personal details of a user.
type UpdateProfileCommand struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Version   *int   `json:"version"`
}

// AddAddressCommand creates an address for the calling user.
type AddAddressCommand struct {
	AddressLine1 string             `json:"address_line1" validate:"required,max=255"`
	AddressLine2 string             `json:"address_line2" validate:"omitempty,max=255"`
	City         string             `json:"city" validate:"required,max=100"`
	State        string             `json:"state" validate:"omitempty,max=100"`
	PostalCode   string             `json:"postal_code" validate:"required,max=20"`
	Country      string             `json:"country" validate:"required,max=100"`
	Phone        string             `json:"phone" validate:"omitempty,max=30"`
	IsDefault    bool               `json:"is_default"`
	AddressType  models.AddressType `json:"address_type" validate:"omitempty,oneof=shipping billing both"`
}

// UserService manages accounts and their addresses.
type UserService struct {
	users     repositories.UserRepository
	addresses repositories.AddressRepository
	tx        Transactor
	events    EventWriter
	cache     cache.Cache
	ttl       time.Duration
}

func NewUserService(users repositories.UserRepository, addresses repositories.AddressRepository, tx Transactor, events EventWriter, c cache.Cache, ttl time.Duration) *UserService {
	return &UserService{users: users, addresses: addresses, tx: tx, events: events, cache: c, ttl: ttl}
}

// GetUser returns a user by id, served from the cache when possible.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return cached(ctx, s.cache, cache.UserKey(id), s.ttl, func() (*models.User, error) {
		return s.users.GetByID(ctx, id)
	})
}

func (s *UserService) ListUsers(ctx context.Context, page models.PageRequest) (models.Page[models.User], error) {
	page = page.Normalize()
	users, total, err := s.users.List(ctx, page)
	if err != nil {
		return models.Page[models.User]{}, err
	}
	return models.NewPage(users, page, total), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, cmd UpdateProfileCommand) (*models.User, error) {
	var user *models.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := checkVersion("user", userID, user.Version, cmd.Version); err != nil {
			return err
		}
		user.FirstName = strings.TrimSpace(cmd.FirstName)
		user.LastName = strings.TrimSpace(cmd.LastName)
		user.Phone = strings.TrimSpace(cmd.Phone)
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		return s.events.Add(ctx, models.UserEvent{Type: models.EventUserUpdated, UserID: user.ID, Email: user.Email})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateStatus activates or deactivates an account. Deactivation signs the
// user out everywhere.
func (s *UserService) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, active bool) (*models.User, error) {
	if actor.UserID == id {
		return nil, models.NewValidationError("is_active", "you cannot change your own status")
	}

	var user *models.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if user.IsActive == active {
			return nil
		}
		user.IsActive = active
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		if !active {
			if err := s.users.RevokeAllRefreshTokens(ctx, id, time.Now()); err != nil {
				return err
			}
		}
		return s.events.Add(ctx, models.UserEvent{Type: models.EventUserStatusChanged, UserID: user.ID, Email: user.Email})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateRole(ctx context.Context, actor Actor, id uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, models.NewValidationError("role", fmt.Sprintf("unknown role '%s'", role))
	}
	if actor.UserID == id {
		return nil, models.NewValidationError("role", "you cannot change your own role")
	}

	var user *models.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if user.Role == role {
			return nil
		}
		user.Role = role
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		return s.events.Add(ctx, models.UserEvent{Type: models.EventUserRoleChanged, UserID: user.ID, Email: user.Email})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AddAddress stores an address. The first address of a user, or one flagged
// as default, becomes the only default.
func (s *UserService) AddAddress(ctx context.Context, userID uuid.UUID, cmd AddAddressCommand) (*models.Address, error) {
	addressType := cmd.AddressType
	if addressType == "" {
		addressType = models.AddressTypeShipping
	}
	address := &models.Address{
		UserID:       userID,
		AddressLine1: strings.TrimSpace(cmd.AddressLine1),
		AddressLine2: strings.TrimSpace(cmd.AddressLine2),
		City:         strings.TrimSpace(cmd.City),
		State:        strings.TrimSpace(cmd.State),
		PostalCode:   strings.TrimSpace(cmd.PostalCode),
		Country:      strings.TrimSpace(cmd.Country),
		Phone:        strings.TrimSpace(cmd.Phone),
		IsDefault:    cmd.IsDefault,
		AddressType:  addressType,
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.addresses.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			address.IsDefault = true
		}
		if address.IsDefault && len(existing) > 0 {
			if err := s.addresses.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return s.addresses.Create(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}

func (s *UserService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	addresses, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if addresses == nil {
		addresses = []models.Address{}
	}
	return addresses, nil
}

// DeleteAddress removes one of the caller's addresses. Addresses of other
// users look missing.
func (s *UserService) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	address, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		return err
	}
	if address.UserID != userID {
		return models.NotFound("address", addressID)
	}
	return s.addresses.Delete(ctx, addressID)
}
