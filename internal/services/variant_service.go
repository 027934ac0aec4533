package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopilent/internal/models"
	"shopilent/internal/repositories"
)

type VariantCommand struct {
	SKU           *string          `json:"sku" validate:"omitempty,max=100"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity int              `json:"stock_quantity" validate:"gte=0"`
	IsActive      *bool            `json:"is_active"`
	Metadata      map[string]any   `json:"metadata"`
	Attributes    []AttributeInput `json:"attributes" validate:"dive"`
	Version       *int             `json:"version"`
}

// VariantService manages the purchasable variants of products.
type VariantService struct {
	repo       repositories.VariantRepository
	products   repositories.ProductRepository
	attributes repositories.AttributeRepository
	tx         Transactor
	events     EventWriter
}

func NewVariantService(repo repositories.VariantRepository, products repositories.ProductRepository, attributes repositories.AttributeRepository, tx Transactor, events EventWriter) *VariantService {
	return &VariantService{repo: repo, products: products, attributes: attributes, tx: tx, events: events}
}

func (s *VariantService) validate(ctx context.Context, cmd VariantCommand, self uuid.UUID) error {
	verr := &models.ValidationError{}
	if cmd.Price != nil && cmd.Price.IsNegative() {
		verr.Add("price", "must be greater than or equal to zero")
	}
	if cmd.StockQuantity < 0 {
		verr.Add("stock_quantity", "must be greater than or equal to zero")
	}
	if cmd.SKU != nil && strings.TrimSpace(*cmd.SKU) == "" {
		verr.Add("sku", "must not be blank")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	if cmd.SKU != nil {
		existing, err := s.repo.GetBySKU(ctx, *cmd.SKU)
		if err == nil && existing.ID != self {
			return models.AlreadyExists("variant", "sku", *cmd.SKU)
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *VariantService) saveAttributes(ctx context.Context, variantID uuid.UUID, inputs []AttributeInput) error {
	values, err := attributeRows(ctx, s.attributes, inputs, true)
	if err != nil {
		return err
	}
	rows := make([]models.VariantAttribute, 0, len(values))
	for _, in := range inputs {
		rows = append(rows, models.VariantAttribute{AttributeID: in.AttributeID, Value: map[string]any{"value": values[in.AttributeID]}})
	}
	return s.repo.ReplaceAttributes(ctx, variantID, rows)
}

func (s *VariantService) Create(ctx context.Context, productID uuid.UUID, cmd VariantCommand) (*models.ProductVariant, error) {
	var variant *models.ProductVariant
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.products.GetByID(ctx, productID); err != nil {
			return err
		}
		if err := s.validate(ctx, cmd, uuid.Nil); err != nil {
			return err
		}
		variant = &models.ProductVariant{
			ProductID:     productID,
			SKU:           cmd.SKU,
			Price:         cmd.Price,
			StockQuantity: cmd.StockQuantity,
			IsActive:      cmd.IsActive == nil || *cmd.IsActive,
			Metadata:      cmd.Metadata,
		}
		if err := s.repo.Create(ctx, variant); err != nil {
			return err
		}
		if err := s.saveAttributes(ctx, variant.ID, cmd.Attributes); err != nil {
			return err
		}
		return s.events.Add(ctx, models.VariantEvent{Type: models.EventVariantCreated, VariantID: variant.ID, ProductID: productID})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, variant.ID)
}

func (s *VariantService) Update(ctx context.Context, id uuid.UUID, cmd VariantCommand) (*models.ProductVariant, error) {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		variant, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion("variant", id, variant.Version, cmd.Version); err != nil {
			return err
		}
		if err := s.validate(ctx, cmd, id); err != nil {
			return err
		}

		oldStock := variant.StockQuantity
		variant.SKU = cmd.SKU
		variant.Price = cmd.Price
		variant.StockQuantity = cmd.StockQuantity
		if cmd.IsActive != nil {
			variant.IsActive = *cmd.IsActive
		}
		variant.Metadata = cmd.Metadata
		if err := s.repo.Update(ctx, variant); err != nil {
			return err
		}
		if err := s.saveAttributes(ctx, id, cmd.Attributes); err != nil {
			return err
		}

		events := []models.Event{models.VariantEvent{Type: models.EventVariantUpdated, VariantID: id, ProductID: variant.ProductID}}
		if oldStock != variant.StockQuantity {
			events = append(events, models.VariantEvent{
				Type:      models.EventVariantStockChanged,
				VariantID: id,
				ProductID: variant.ProductID,
				OldStock:  oldStock,
				NewStock:  variant.StockQuantity,
			})
		}
		return addEvents(ctx, s.events, events...)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateStock sets the absolute stock level of a variant.
func (s *VariantService) UpdateStock(ctx context.Context, id uuid.UUID, quantity int, version *int) (*models.ProductVariant, error) {
	if quantity < 0 {
		return nil, models.NewValidationError("stock_quantity", "must be greater than or equal to zero")
	}

	var variant *models.ProductVariant
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		variant, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion("variant", id, variant.Version, version); err != nil {
			return err
		}
		oldStock := variant.StockQuantity
		if oldStock == quantity {
			return nil
		}
		if err := s.repo.AdjustStock(ctx, id, variant.Version, quantity-oldStock); err != nil {
			return err
		}
		variant.StockQuantity = quantity
		variant.Version++
		return s.events.Add(ctx, models.VariantEvent{
			Type:      models.EventVariantStockChanged,
			VariantID: id,
			ProductID: variant.ProductID,
			OldStock:  oldStock,
			NewStock:  quantity,
		})
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *VariantService) UpdateStatus(ctx context.Context, id uuid.UUID, active bool, version *int) (*models.ProductVariant, error) {
	var variant *models.ProductVariant
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		variant, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion("variant", id, variant.Version, version); err != nil {
			return err
		}
		if variant.IsActive == active {
			return nil
		}
		variant.IsActive = active
		if err := s.repo.Update(ctx, variant); err != nil {
			return err
		}
		return s.events.Add(ctx, models.VariantEvent{Type: models.EventVariantUpdated, VariantID: id, ProductID: variant.ProductID})
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *VariantService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		variant, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.events.Add(ctx, models.VariantEvent{Type: models.EventVariantDeleted, VariantID: id, ProductID: variant.ProductID})
	})
}

func (s *VariantService) Get(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *VariantService) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	variants, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if variants == nil {
		variants = []models.ProductVariant{}
	}
	return variants, nil
}
