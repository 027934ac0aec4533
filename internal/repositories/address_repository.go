package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// AddressRepository defines data access for user addresses.
type AddressRepository interface {
	Create(ctx context.Context, address *models.Address) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	ClearDefault(ctx context.Context, userID uuid.UUID) error
}

// GORMAddressRepository is a GORM implementation of AddressRepository.
type GORMAddressRepository struct {
	db *database.DB
}

// NewGORMAddressRepository creates a new instance of GORMAddressRepository.
func NewGORMAddressRepository(db *database.DB) *GORMAddressRepository {
	return &GORMAddressRepository{db: db}
}

func (r *GORMAddressRepository) Create(ctx context.Context, address *models.Address) error {
	if err := r.db.Conn(ctx).Create(address).Error; err != nil {
		return translateError("address", err)
	}
	return nil
}

func (r *GORMAddressRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.Conn(ctx).Delete(&models.Address{}, "id = ?", id)
	if res.Error != nil {
		return translateError("address", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NotFound("address", id)
	}
	return nil
}

func (r *GORMAddressRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	if err := r.db.Conn(ctx).First(&address, "id = ?", id).Error; err != nil {
		return nil, translateError(fmt.Sprintf("address %s", id), err)
	}
	return &address, nil
}

func (r *GORMAddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	err := r.db.Conn(ctx).Where("user_id = ?", userID).Order("is_default DESC, created_at ASC").Find(&addresses).Error
	if err != nil {
		return nil, translateError("addresses", err)
	}
	return addresses, nil
}

func (r *GORMAddressRepository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	err := r.db.Conn(ctx).Model(&models.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
	return translateError("addresses", err)
}
