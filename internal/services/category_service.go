package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopilent/internal/cache"
	"shopilent/internal/models"
	"shopilent/internal/repositories"
)

type CreateCategoryCommand struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Slug        string     `json:"slug" validate:"omitempty,max=150"`
	Description string     `json:"description" validate:"omitempty,max=2000"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

type UpdateCategoryCommand struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=150"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	// ParentID moves the category. When nil the current parent is kept
	// unless MoveToRoot is set.
	ParentID   *uuid.UUID `json:"parent_id"`
	MoveToRoot bool       `json:"move_to_root"`
	IsActive   *bool      `json:"is_active"`
	Version    *int       `json:"version"`
}

// CategoryService maintains the category tree. Every category stores its
// materialised path so subtree queries are prefix matches.
type CategoryService struct {
	repo   repositories.CategoryRepository
	tx     Transactor
	events EventWriter
	cache  cache.Cache
	ttl    time.Duration
}

func NewCategoryService(repo repositories.CategoryRepository, tx Transactor, events EventWriter, c cache.Cache, ttl time.Duration) *CategoryService {
	return &CategoryService{repo: repo, tx: tx, events: events, cache: c, ttl: ttl}
}

func (s *CategoryService) ensureSlugFree(ctx context.Context, slug string, self uuid.UUID) error {
	existing, err := s.repo.GetBySlug(ctx, slug)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return models.AlreadyExists("category", "slug", slug)
	}
	return nil
}

func (s *CategoryService) loadParent(ctx context.Context, parentID *uuid.UUID) (*models.Category, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := s.repo.GetByID(ctx, *parentID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewValidationError("parent_id", "parent category does not exist")
	}
	return parent, err
}

func (s *CategoryService) Create(ctx context.Context, cmd CreateCategoryCommand) (*models.Category, error) {
	slug, err := resolveSlug(cmd.Slug, cmd.Name)
	if err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:        strings.TrimSpace(cmd.Name),
		Slug:        slug,
		Description: strings.TrimSpace(cmd.Description),
		IsActive:    true,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureSlugFree(ctx, slug, uuid.Nil); err != nil {
			return err
		}
		parent, err := s.loadParent(ctx, cmd.ParentID)
		if err != nil {
			return err
		}
		category.PlaceUnder(parent)

		if err := s.repo.Create(ctx, category); err != nil {
			return err
		}
		return s.events.Add(ctx, models.CategoryEvent{
			Type:       models.EventCategoryCreated,
			CategoryID: category.ID,
			ParentID:   category.ParentID,
			Slug:       category.Slug,
			Path:       category.Path,
		})
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// Update renames, re-slugs or moves a category. A move or slug change
// rewrites the path of the whole subtree.
func (s *CategoryService) Update(ctx context.Context, id uuid.UUID, cmd UpdateCategoryCommand) (*models.Category, error) {
	slug, err := resolveSlug(cmd.Slug, cmd.Name)
	if err != nil {
		return nil, err
	}

	var category *models.Category
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		category, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion("category", id, category.Version, cmd.Version); err != nil {
			return err
		}
		if err := s.ensureSlugFree(ctx, slug, id); err != nil {
			return err
		}

		if cmd.ParentID != nil && *cmd.ParentID == id {
			return models.NewValidationError("parent_id", "a category cannot be its own parent")
		}
		parentID := cmd.ParentID
		if parentID == nil && !cmd.MoveToRoot {
			parentID = category.ParentID
		}
		parent, err := s.loadParent(ctx, parentID)
		if err != nil {
			return err
		}
		if parent != nil && category.IsAncestorOf(parent) {
			return models.NewValidationError("parent_id", "a category cannot be moved under its own descendant")
		}

		oldPath, oldLevel := category.Path, category.Level
		category.Name = strings.TrimSpace(cmd.Name)
		category.Slug = slug
		category.Description = strings.TrimSpace(cmd.Description)
		if cmd.IsActive != nil {
			category.IsActive = *cmd.IsActive
		}
		category.PlaceUnder(parent)

		if err := s.repo.Update(ctx, category); err != nil {
			return err
		}
		moved := category.Path != oldPath
		if moved {
			if err := s.repo.MoveSubtree(ctx, oldPath, category.Path, category.Level-oldLevel); err != nil {
				return err
			}
		}
		return s.events.Add(ctx, models.CategoryEvent{
			Type:         models.EventCategoryUpdated,
			CategoryID:   category.ID,
			ParentID:     category.ParentID,
			Slug:         category.Slug,
			Path:         category.Path,
			SubtreeMoved: moved,
		})
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		category, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		hasChildren, err := s.repo.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if hasChildren {
			return fmt.Errorf("category '%s' has subcategories: %w", category.Slug, models.ErrInvalidState)
		}
		hasProducts, err := s.repo.HasProducts(ctx, id)
		if err != nil {
			return err
		}
		if hasProducts {
			return fmt.Errorf("category '%s' has products: %w", category.Slug, models.ErrInvalidState)
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.events.Add(ctx, models.CategoryEvent{
			Type:       models.EventCategoryDeleted,
			CategoryID: id,
			ParentID:   category.ParentID,
			Slug:       category.Slug,
			Path:       category.Path,
		})
	})
}

func (s *CategoryService) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return cached(ctx, s.cache, cache.CategoryKey(id), s.ttl, func() (*models.Category, error) {
		return s.repo.GetByID(ctx, id)
	})
}

func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return s.repo.GetBySlug(ctx, strings.ToLower(slug))
}

func (s *CategoryService) GetChildren(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	children, err := s.repo.GetChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []models.Category{}
	}
	return children, nil
}

func (s *CategoryService) List(ctx context.Context, page models.PageRequest) (*models.Page[models.Category], error) {
	page = page.Normalize()
	key := cache.ListKey(cache.CategoriesPrefix, "page="+fmt.Sprint(page.Page), "size="+fmt.Sprint(page.PageSize))
	return cached(ctx, s.cache, key, s.ttl, func() (*models.Page[models.Category], error) {
		items, total, err := s.repo.List(ctx, page)
		if err != nil {
			return nil, err
		}
		p := models.NewPage(items, page, total)
		return &p, nil
	})
}
