package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// AttributeRepository defines data access for attribute definitions.
type AttributeRepository interface {
	Create(ctx context.Context, attribute *models.Attribute) error
	Update(ctx context.Context, attribute *models.Attribute) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attribute, error)
	GetByName(ctx context.Context, name string) (*models.Attribute, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attribute, error)
	IsInUse(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, page models.PageRequest) ([]models.Attribute, int64, error)
}

// GORMAttributeRepository is a GORM implementation of AttributeRepository.
type GORMAttributeRepository struct {
	db *database.DB
}

// NewGORMAttributeRepository creates a new instance of GORMAttributeRepository.
func NewGORMAttributeRepository(db *database.DB) *GORMAttributeRepository {
	return &GORMAttributeRepository{db: db}
}

func (r *GORMAttributeRepository) Create(ctx context.Context, attribute *models.Attribute) error {
	attribute.Version = 1
	if err := r.db.Conn(ctx).Create(attribute).Error; err != nil {
		return translateError("attribute", err)
	}
	return nil
}

// Update saves the attribute if nobody changed it since it was loaded.
func (r *GORMAttributeRepository) Update(ctx context.Context, attribute *models.Attribute) error {
	expected := attribute.Version
	attribute.Version++
	if err := saveVersioned(r.db.Conn(ctx), "attribute", attribute, attribute.ID, expected); err != nil {
		attribute.Version = expected
		return err
	}
	return nil
}

func (r *GORMAttributeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.Conn(ctx).Delete(&models.Attribute{}, "id = ?", id)
	if res.Error != nil {
		return translateError("attribute", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NotFound("attribute", id)
	}
	return nil
}

func (r *GORMAttributeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Attribute, error) {
	var attribute models.Attribute
	if err := r.db.Conn(ctx).First(&attribute, "id = ?", id).Error; err != nil {
		return nil, translateError(fmt.Sprintf("attribute %s", id), err)
	}
	return &attribute, nil
}

func (r *GORMAttributeRepository) GetByName(ctx context.Context, name string) (*models.Attribute, error) {
	var attribute models.Attribute
	if err := r.db.Conn(ctx).First(&attribute, "name = ?", name).Error; err != nil {
		return nil, translateError(fmt.Sprintf("attribute '%s'", name), err)
	}
	return &attribute, nil
}

func (r *GORMAttributeRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attribute, error) {
	var attributes []models.Attribute
	if len(ids) == 0 {
		return attributes, nil
	}
	if err := r.db.Conn(ctx).Where("id IN ?", ids).Find(&attributes).Error; err != nil {
		return nil, translateError("attributes", err)
	}
	return attributes, nil
}

// IsInUse reports whether any product or variant stores a value for the attribute.
func (r *GORMAttributeRepository) IsInUse(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.Conn(ctx).Model(&models.ProductAttribute{}).Where("attribute_id = ?", id).Count(&count).Error; err != nil {
		return false, translateError("product attributes", err)
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.Conn(ctx).Model(&models.VariantAttribute{}).Where("attribute_id = ?", id).Count(&count).Error; err != nil {
		return false, translateError("variant attributes", err)
	}
	return count > 0, nil
}

func (r *GORMAttributeRepository) List(ctx context.Context, page models.PageRequest) ([]models.Attribute, int64, error) {
	var (
		attributes []models.Attribute
		total      int64
	)
	q := r.db.Conn(ctx).Model(&models.Attribute{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError("attributes", err)
	}
	err := r.db.Conn(ctx).Order("name ASC").Offset(page.Offset()).Limit(page.PageSize).Find(&attributes).Error
	if err != nil {
		return nil, 0, translateError("attributes", err)
	}
	return attributes, total, nil
}
