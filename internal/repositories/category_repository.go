package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// CategoryRepository defines data access for the category tree.
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Category, error)
	GetChildren(ctx context.Context, parentID uuid.UUID) ([]models.Category, error)
	GetDescendants(ctx context.Context, category *models.Category) ([]models.Category, error)
	MoveSubtree(ctx context.Context, oldPath, newPath string, levelDelta int) error
	HasChildren(ctx context.Context, id uuid.UUID) (bool, error)
	HasProducts(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, page models.PageRequest) ([]models.Category, int64, error)
}

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *database.DB
}

// NewGORMCategoryRepository creates a new instance of GORMCategoryRepository.
func NewGORMCategoryRepository(db *database.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{db: db}
}

func (r *GORMCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	category.Version = 1
	if err := r.db.Conn(ctx).Create(category).Error; err != nil {
		return translateError("category", err)
	}
	return nil
}

func (r *GORMCategoryRepository) Update(ctx context.Context, category *models.Category) error {
	expected := category.Version
	category.Version++
	if err := saveVersioned(r.db.Conn(ctx), "category", category, category.ID, expected); err != nil {
		category.Version = expected
		return err
	}
	return nil
}

func (r *GORMCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.Conn(ctx).Delete(&models.Category{}, "id = ?", id)
	if res.Error != nil {
		return translateError("category", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NotFound("category", id)
	}
	return nil
}

func (r *GORMCategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.Conn(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, translateError(fmt.Sprintf("category %s", id), err)
	}
	return &category, nil
}

func (r *GORMCategoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.Conn(ctx).First(&category, "slug = ?", slug).Error; err != nil {
		return nil, translateError(fmt.Sprintf("category '%s'", slug), err)
	}
	return &category, nil
}

func (r *GORMCategoryRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	if len(ids) == 0 {
		return categories, nil
	}
	if err := r.db.Conn(ctx).Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, translateError("categories", err)
	}
	return categories, nil
}

func (r *GORMCategoryRepository) GetChildren(ctx context.Context, parentID uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.Conn(ctx).Where("parent_id = ?", parentID).Order("name ASC").Find(&categories).Error
	if err != nil {
		return nil, translateError("categories", err)
	}
	return categories, nil
}

func (r *GORMCategoryRepository) GetDescendants(ctx context.Context, category *models.Category) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.Conn(ctx).Where("path LIKE ?", category.Path+"/%").Order("level ASC").Find(&categories).Error
	if err != nil {
		return nil, translateError("categories", err)
	}
	return categories, nil
}

// MoveSubtree rewrites the path prefix and level of every descendant of oldPath.
func (r *GORMCategoryRepository) MoveSubtree(ctx context.Context, oldPath, newPath string, levelDelta int) error {
	descendants, err := r.GetDescendants(ctx, &models.Category{Path: oldPath})
	if err != nil {
		return err
	}
	for i := range descendants {
		d := &descendants[i]
		d.Path = newPath + d.Path[len(oldPath):]
		d.Level += levelDelta
		if err := r.Update(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *GORMCategoryRepository) HasChildren(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.Conn(ctx).Model(&models.Category{}).Where("parent_id = ?", id).Count(&count).Error; err != nil {
		return false, translateError("categories", err)
	}
	return count > 0, nil
}

func (r *GORMCategoryRepository) HasProducts(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.Conn(ctx).Model(&models.ProductCategory{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
		return false, translateError("product categories", err)
	}
	return count > 0, nil
}

func (r *GORMCategoryRepository) List(ctx context.Context, page models.PageRequest) ([]models.Category, int64, error) {
	var (
		categories []models.Category
		total      int64
	)
	if err := r.db.Conn(ctx).Model(&models.Category{}).Count(&total).Error; err != nil {
		return nil, 0, translateError("categories", err)
	}
	err := r.db.Conn(ctx).Order("path ASC").Offset(page.Offset()).Limit(page.PageSize).Find(&categories).Error
	if err != nil {
		return nil, 0, translateError("categories", err)
	}
	return categories, total, nil
}
