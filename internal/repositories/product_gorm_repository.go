package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// ProductRepository defines write-side data access for products.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	ReplaceCategories(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID) error
	ReplaceAttributes(ctx context.Context, productID uuid.UUID, attributes []models.ProductAttribute) error
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *database.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *database.DB) *GORMProductRepository {
	return &GORMProductRepository{db: db}
}

// Create inserts the product together with its category and attribute rows.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	product.Version = 1
	if err := r.db.Conn(ctx).Create(product).Error; err != nil {
		return translateError("product", err)
	}
	return nil
}

// Update saves scalar columns under a version check. Join rows are replaced
// separately through ReplaceCategories and ReplaceAttributes.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	expected := product.Version
	product.Version++
	if err := saveVersioned(r.db.Conn(ctx), "product", product, product.ID, expected); err != nil {
		product.Version = expected
		return err
	}
	return nil
}

// Delete removes the product, its variants and every join row.
func (r *GORMProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithinTransaction(ctx, func(ctx context.Context) error {
		tx := r.db.Conn(ctx)

		variantIDs := tx.Model(&models.ProductVariant{}).Select("id").Where("product_id = ?", id)
		if err := tx.Where("variant_id IN (?)", variantIDs).Delete(&models.VariantAttribute{}).Error; err != nil {
			return translateError("variant attributes", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return translateError("variants", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductCategory{}).Error; err != nil {
			return translateError("product categories", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductAttribute{}).Error; err != nil {
			return translateError("product attributes", err)
		}

		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return translateError("product", res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NotFound("product", id)
		}
		return nil
	})
}

func (r *GORMProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.Conn(ctx).Preload("Categories").Preload("Attributes").First(&product, "id = ?", id).Error
	if err != nil {
		return nil, translateError(fmt.Sprintf("product %s", id), err)
	}
	return &product, nil
}

func (r *GORMProductRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.Conn(ctx).First(&product, "slug = ?", slug).Error; err != nil {
		return nil, translateError(fmt.Sprintf("product '%s'", slug), err)
	}
	return &product, nil
}

func (r *GORMProductRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.Conn(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, translateError(fmt.Sprintf("product sku '%s'", sku), err)
	}
	return &product, nil
}

func (r *GORMProductRepository) ReplaceCategories(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID) error {
	tx := r.db.Conn(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductCategory{}).Error; err != nil {
		return translateError("product categories", err)
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	rows := make([]models.ProductCategory, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		rows = append(rows, models.ProductCategory{ProductID: productID, CategoryID: id})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return translateError("product categories", err)
	}
	return nil
}

func (r *GORMProductRepository) ReplaceAttributes(ctx context.Context, productID uuid.UUID, attributes []models.ProductAttribute) error {
	tx := r.db.Conn(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductAttribute{}).Error; err != nil {
		return translateError("product attributes", err)
	}
	if len(attributes) == 0 {
		return nil
	}
	for i := range attributes {
		attributes[i].ProductID = productID
	}
	if err := tx.Create(&attributes).Error; err != nil {
		return translateError("product attributes", err)
	}
	return nil
}
