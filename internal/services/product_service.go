package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopilent/internal/cache"
	"shopilent/internal/models"
	"shopilent/internal/repositories"
)

// AttributeInput assigns a value to an attribute.
type AttributeInput struct {
	AttributeID uuid.UUID `json:"attribute_id" validate:"required"`
	Value       any       `json:"value" validate:"required"`
}

// ProductCommand is the body of product create and update requests.
type ProductCommand struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Slug        string           `json:"slug" validate:"omitempty,max=255"`
	Description string           `json:"description" validate:"omitempty,max=10000"`
	BasePrice   decimal.Decimal  `json:"base_price"`
	Currency    string           `json:"currency" validate:"omitempty,len=3"`
	SKU         *string          `json:"sku" validate:"omitempty,max=100"`
	IsActive    *bool            `json:"is_active"`
	Metadata    map[string]any   `json:"metadata"`
	CategoryIDs []uuid.UUID      `json:"category_ids"`
	Attributes  []AttributeInput `json:"attributes" validate:"dive"`
	Version     *int             `json:"version"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo       repositories.ProductRepository
	reads      repositories.ProductReadRepository
	categories repositories.CategoryRepository
	attributes repositories.AttributeRepository
	tx         Transactor
	events     EventWriter
	cache      cache.Cache
	ttl        time.Duration
	currency   string
}

// NewProductService creates a new ProductService.
func NewProductService(
	repo repositories.ProductRepository,
	reads repositories.ProductReadRepository,
	categories repositories.CategoryRepository,
	attributes repositories.AttributeRepository,
	tx Transactor,
	events EventWriter,
	c cache.Cache,
	ttl time.Duration,
	currency string,
) *ProductService {
	return &ProductService{
		repo:       repo,
		reads:      reads,
		categories: categories,
		attributes: attributes,
		tx:         tx,
		events:     events,
		cache:      c,
		ttl:        ttl,
		currency:   strings.ToUpper(currency),
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// attributeRows checks that every referenced attribute exists and, when
// variantOnly is set, that it defines variants.
func attributeRows(ctx context.Context, repo repositories.AttributeRepository, inputs []AttributeInput, variantOnly bool) (map[uuid.UUID]any, error) {
	values := make(map[uuid.UUID]any, len(inputs))
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		if _, dup := values[in.AttributeID]; dup {
			return nil, models.NewValidationError("attributes", fmt.Sprintf("attribute %s is listed twice", in.AttributeID))
		}
		values[in.AttributeID] = in.Value
		ids = append(ids, in.AttributeID)
	}
	if len(ids) == 0 {
		return values, nil
	}

	found, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, models.NewValidationError("attributes", "one or more attributes do not exist")
	}
	if variantOnly {
		for _, a := range found {
			if !a.IsVariant {
				return nil, models.NewValidationError("attributes", fmt.Sprintf("attribute '%s' is not a variant attribute", a.Name))
			}
		}
	}
	return values, nil
}

func (s *ProductService) validate(ctx context.Context, cmd ProductCommand, self uuid.UUID) (string, error) {
	verr := &models.ValidationError{}
	slug, err := resolveSlug(cmd.Slug, cmd.Name)
	if err != nil {
		verr.Add("slug", "must contain only lowercase letters, digits and single dashes")
	}
	if cmd.BasePrice.IsNegative() {
		verr.Add("base_price", "must be greater than or equal to zero")
	}
	if cmd.SKU != nil && strings.TrimSpace(*cmd.SKU) == "" {
		verr.Add("sku", "must not be blank")
	}
	if err := verr.OrNil(); err != nil {
		return "", err
	}

	if existing, err := s.repo.GetBySlug(ctx, slug); err == nil && existing.ID != self {
		return "", models.AlreadyExists("product", "slug", slug)
	} else if err != nil && !errors.Is(err, models.ErrNotFound) {
		return "", err
	}
	if cmd.SKU != nil {
		if existing, err := s.repo.GetBySKU(ctx, *cmd.SKU); err == nil && existing.ID != self {
			return "", models.AlreadyExists("product", "sku", *cmd.SKU)
		} else if err != nil && !errors.Is(err, models.ErrNotFound) {
			return "", err
		}
	}

	categoryIDs := uniqueIDs(cmd.CategoryIDs)
	if len(categoryIDs) > 0 {
		found, err := s.categories.GetByIDs(ctx, categoryIDs)
		if err != nil {
			return "", err
		}
		if len(found) != len(categoryIDs) {
			return "", models.NewValidationError("category_ids", "one or more categories do not exist")
		}
	}
	return slug, nil
}

func (s *ProductService) saveRelations(ctx context.Context, productID uuid.UUID, cmd ProductCommand) error {
	values, err := attributeRows(ctx, s.attributes, cmd.Attributes, false)
	if err != nil {
		return err
	}
	rows := make([]models.ProductAttribute, 0, len(values))
	for _, in := range cmd.Attributes {
		rows = append(rows, models.ProductAttribute{AttributeID: in.AttributeID, Value: map[string]any{"value": values[in.AttributeID]}})
	}
	if err := s.repo.ReplaceAttributes(ctx, productID, rows); err != nil {
		return err
	}
	return s.repo.ReplaceCategories(ctx, productID, uniqueIDs(cmd.CategoryIDs))
}

// CreateProduct creates a new product.
func (s *ProductService) CreateProduct(ctx context.Context, cmd ProductCommand) (*models.ProductDetail, error) {
	var id uuid.UUID
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		slug, err := s.validate(ctx, cmd, uuid.Nil)
		if err != nil {
			return err
		}
		product := &models.Product{
			Name:        strings.TrimSpace(cmd.Name),
			Slug:        slug,
			Description: cmd.Description,
			BasePrice:   cmd.BasePrice,
			Currency:    s.currencyOf(cmd.Currency),
			SKU:         cmd.SKU,
			IsActive:    cmd.IsActive == nil || *cmd.IsActive,
			Metadata:    cmd.Metadata,
		}
		if err := s.repo.Create(ctx, product); err != nil {
			return err
		}
		if err := s.saveRelations(ctx, product.ID, cmd); err != nil {
			return err
		}
		id = product.ID
		return s.events.Add(ctx, models.ProductEvent{Type: models.EventProductCreated, ProductID: product.ID, Slug: product.Slug})
	})
	if err != nil {
		return nil, err
	}
	return s.reads.GetDetail(ctx, id)
}

func (s *ProductService) currencyOf(requested string) string {
	if requested == "" {
		return s.currency
	}
	return strings.ToUpper(requested)
}

// UpdateProduct updates an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, cmd ProductCommand) (*models.ProductDetail, error) {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		product, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion("product", id, product.Version, cmd.Version); err != nil {
			return err
		}
		slug, err := s.validate(ctx, cmd, id)
		if err != nil {
			return err
		}

		product.Name = strings.TrimSpace(cmd.Name)
		product.Slug = slug
		product.Description = cmd.Description
		product.BasePrice = cmd.BasePrice
		product.Currency = s.currencyOf(cmd.Currency)
		product.SKU = cmd.SKU
		if cmd.IsActive != nil {
			product.IsActive = *cmd.IsActive
		}
		product.Metadata = cmd.Metadata
		if err := s.repo.Update(ctx, product); err != nil {
			return err
		}
		if err := s.saveRelations(ctx, id, cmd); err != nil {
			return err
		}
		return s.events.Add(ctx, models.ProductEvent{Type: models.EventProductUpdated, ProductID: id, Slug: product.Slug})
	})
	if err != nil {
		return nil, err
	}
	return s.reads.GetDetail(ctx, id)
}

func (s *ProductService) UpdateStatus(ctx context.Context, id uuid.UUID, active bool, version *int) (*models.Product, error) {
	var product *models.Product
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion("product", id, product.Version, version); err != nil {
			return err
		}
		if product.IsActive == active {
			return nil
		}
		product.IsActive = active
		if err := s.repo.Update(ctx, product); err != nil {
			return err
		}
		return s.events.Add(ctx, models.ProductEvent{Type: models.EventProductStatusChanged, ProductID: id, Slug: product.Slug})
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct deletes a product together with its variants.
func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		product, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.events.Add(ctx, models.ProductEvent{Type: models.EventProductDeleted, ProductID: id, Slug: product.Slug})
	})
}

// GetProductByID returns the assembled product view, cached per id.
func (s *ProductService) GetProductByID(ctx context.Context, id uuid.UUID) (*models.ProductDetail, error) {
	return cached(ctx, s.cache, cache.ProductKey(id), s.ttl, func() (*models.ProductDetail, error) {
		return s.reads.GetDetail(ctx, id)
	})
}

func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*models.ProductDetail, error) {
	return s.reads.GetDetailBySlug(ctx, strings.ToLower(slug))
}

// ListProducts returns one page of product summaries.
func (s *ProductService) ListProducts(ctx context.Context, filter models.ProductFilter) (*models.Page[models.ProductSummary], error) {
	filter.PageRequest = filter.PageRequest.Normalize()
	switch filter.SortBy {
	case "", "name", "price", "created_at":
	default:
		return nil, models.NewValidationError("sort_by", "must be one of name, price, created_at")
	}

	category := ""
	if filter.CategoryID != nil {
		category = filter.CategoryID.String()
	}
	key := cache.ListKey(cache.ProductsPrefix,
		"page="+fmt.Sprint(filter.Page),
		"size="+fmt.Sprint(filter.PageSize),
		"category="+category,
		"search="+strings.ToLower(filter.Search),
		"active="+fmt.Sprint(filter.ActiveOnly),
		"sort="+filter.SortBy,
		"desc="+fmt.Sprint(filter.SortDesc),
	)
	return cached(ctx, s.cache, key, s.ttl, func() (*models.Page[models.ProductSummary], error) {
		items, total, err := s.reads.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		p := models.NewPage(items, filter.PageRequest, total)
		return &p, nil
	})
}
