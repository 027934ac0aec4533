package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shopilent/internal/models"
	"shopilent/internal/services"
)

func newUserService() (*services.UserService, *MockUserRepository, *MockAddressRepository, *MockEventWriter) {
	users, addresses, events := new(MockUserRepository), new(MockAddressRepository), new(MockEventWriter)
	return services.NewUserService(users, addresses, fakeTx{}, events, nil, time.Minute), users, addresses, events
}

func TestUserService_UpdateStatus(t *testing.T) {
	service, users, _, events := newUserService()
	admin := services.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	target := &models.User{Entity: models.Entity{ID: uuid.New()}, IsActive: true}

	// Admins cannot deactivate themselves
	_, err := service.UpdateStatus(context.Background(), admin, admin.UserID, false)
	assert.True(t, errors.Is(err, models.ErrValidation))

	users.On("GetByID", target.ID).Return(target, nil).Once()
	users.On("Update", target).Return(nil).Once()
	users.On("RevokeAllRefreshTokens", target.ID).Return(nil).Once()

	updated, err := service.UpdateStatus(context.Background(), admin, target.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, []string{models.EventUserStatusChanged}, events.Types)
	users.AssertExpectations(t)
}

func TestUserService_UpdateRole(t *testing.T) {
	service, users, _, _ := newUserService()
	admin := services.Actor{UserID: uuid.New(), Role: models.RoleAdmin}

	_, err := service.UpdateRole(context.Background(), admin, uuid.New(), "owner")
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = service.UpdateRole(context.Background(), admin, admin.UserID, models.RoleCustomer)
	assert.True(t, errors.Is(err, models.ErrValidation))

	target := &models.User{Entity: models.Entity{ID: uuid.New()}, Role: models.RoleCustomer}
	users.On("GetByID", target.ID).Return(target, nil).Once()
	users.On("Update", target).Return(nil).Once()
	updated, err := service.UpdateRole(context.Background(), admin, target.ID, models.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, updated.Role)
}

func TestUserService_AddAddressDefaults(t *testing.T) {
	service, _, addresses, _ := newUserService()
	userID := uuid.New()
	cmd := services.AddAddressCommand{AddressLine1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}

	// The first address becomes the default
	addresses.On("ListByUser", userID).Return([]models.Address{}, nil).Once()
	addresses.On("Create", mock.MatchedBy(func(a *models.Address) bool { return a.IsDefault })).Return(nil).Once()
	address, err := service.AddAddress(context.Background(), userID, cmd)
	require.NoError(t, err)
	assert.True(t, address.IsDefault)
	assert.Equal(t, models.AddressTypeShipping, address.AddressType)

	// A new default clears the previous one
	cmd.IsDefault = true
	addresses.On("ListByUser", userID).Return([]models.Address{*address}, nil).Once()
	addresses.On("ClearDefault", userID).Return(nil).Once()
	addresses.On("Create", mock.Anything).Return(nil).Once()
	_, err = service.AddAddress(context.Background(), userID, cmd)
	require.NoError(t, err)
	addresses.AssertExpectations(t)
}

func TestUserService_DeleteAddressOfAnotherUser(t *testing.T) {
	service, _, addresses, _ := newUserService()
	id := uuid.New()
	addresses.On("GetByID", id).Return(&models.Address{Entity: models.Entity{ID: id}, UserID: uuid.New()}, nil).Once()

	err := service.DeleteAddress(context.Background(), uuid.New(), id)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	addresses.AssertNotCalled(t, "Delete", id)
}
