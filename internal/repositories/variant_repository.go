package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// VariantRepository defines write-side data access for product variants.
type VariantRepository interface {
	Create(ctx context.Context, variant *models.ProductVariant) error
	Update(ctx context.Context, variant *models.ProductVariant) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	GetBySKU(ctx context.Context, sku string) (*models.ProductVariant, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	ReplaceAttributes(ctx context.Context, variantID uuid.UUID, attributes []models.VariantAttribute) error
	AdjustStock(ctx context.Context, id uuid.UUID, expectedVersion, delta int) error
}

// GORMVariantRepository is a GORM implementation of VariantRepository.
type GORMVariantRepository struct {
	db *database.DB
}

// NewGORMVariantRepository creates a new instance of GORMVariantRepository.
func NewGORMVariantRepository(db *database.DB) *GORMVariantRepository {
	return &GORMVariantRepository{db: db}
}

func (r *GORMVariantRepository) Create(ctx context.Context, variant *models.ProductVariant) error {
	variant.Version = 1
	if err := r.db.Conn(ctx).Create(variant).Error; err != nil {
		return translateError("variant", err)
	}
	return nil
}

func (r *GORMVariantRepository) Update(ctx context.Context, variant *models.ProductVariant) error {
	expected := variant.Version
	variant.Version++
	if err := saveVersioned(r.db.Conn(ctx), "variant", variant, variant.ID, expected); err != nil {
		variant.Version = expected
		return err
	}
	return nil
}

func (r *GORMVariantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithinTransaction(ctx, func(ctx context.Context) error {
		tx := r.db.Conn(ctx)
		if err := tx.Where("variant_id = ?", id).Delete(&models.VariantAttribute{}).Error; err != nil {
			return translateError("variant attributes", err)
		}
		res := tx.Delete(&models.ProductVariant{}, "id = ?", id)
		if res.Error != nil {
			return translateError("variant", res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NotFound("variant", id)
		}
		return nil
	})
}

func (r *GORMVariantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.Conn(ctx).Preload("Attributes").First(&variant, "id = ?", id).Error; err != nil {
		return nil, translateError(fmt.Sprintf("variant %s", id), err)
	}
	return &variant, nil
}

func (r *GORMVariantRepository) GetBySKU(ctx context.Context, sku string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.Conn(ctx).First(&variant, "sku = ?", sku).Error; err != nil {
		return nil, translateError(fmt.Sprintf("variant sku '%s'", sku), err)
	}
	return &variant, nil
}

func (r *GORMVariantRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.Conn(ctx).Preload("Attributes").
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&variants).Error
	if err != nil {
		return nil, translateError("variants", err)
	}
	return variants, nil
}

func (r *GORMVariantRepository) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.Conn(ctx).Model(&models.ProductVariant{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
		return 0, translateError("variants", err)
	}
	return count, nil
}

func (r *GORMVariantRepository) ReplaceAttributes(ctx context.Context, variantID uuid.UUID, attributes []models.VariantAttribute) error {
	tx := r.db.Conn(ctx)
	if err := tx.Where("variant_id = ?", variantID).Delete(&models.VariantAttribute{}).Error; err != nil {
		return translateError("variant attributes", err)
	}
	if len(attributes) == 0 {
		return nil
	}
	for i := range attributes {
		attributes[i].VariantID = variantID
	}
	if err := tx.Create(&attributes).Error; err != nil {
		return translateError("variant attributes", err)
	}
	return nil
}

// AdjustStock adds delta to the stock of a variant still at expectedVersion.
// Stock never goes below zero.
func (r *GORMVariantRepository) AdjustStock(ctx context.Context, id uuid.UUID, expectedVersion, delta int) error {
	tx := r.db.Conn(ctx)
	res := tx.Model(&models.ProductVariant{}).
		Where("id = ? AND version = ? AND stock_quantity + ? >= 0", id, expectedVersion, delta).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity + ?", delta),
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return translateError("variant stock", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var variant models.ProductVariant
	if err := tx.Select("id", "version", "stock_quantity").First(&variant, "id = ?", id).Error; err != nil {
		return translateError(fmt.Sprintf("variant %s", id), err)
	}
	if variant.Version != expectedVersion {
		return fmt.Errorf("variant %s: %w", id, models.ErrConcurrencyConflict)
	}
	return models.NewValidationError("quantity", fmt.Sprintf("insufficient stock for variant %s (available: %d)", id, variant.StockQuantity))
}
