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
	"shopilent/internal/config"
	"shopilent/internal/models"
	"shopilent/internal/repositories"
	"shopilent/pkg/logger"
)

// Pricing holds the checkout rules applied to every order.
type Pricing struct {
	TaxRate               decimal.Decimal
	ShippingCost          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	Currency              string
}

// NewPricing parses the configured decimal strings.
func NewPricing(cfg config.OrdersConfig) (Pricing, error) {
	var (
		p   = Pricing{Currency: strings.ToUpper(cfg.Currency)}
		err error
	)
	if p.TaxRate, err = decimal.NewFromString(cfg.TaxRate); err != nil {
		return Pricing{}, fmt.Errorf("invalid orders.tax_rate: %w", err)
	}
	if p.ShippingCost, err = decimal.NewFromString(cfg.ShippingCost); err != nil {
		return Pricing{}, fmt.Errorf("invalid orders.shipping_cost: %w", err)
	}
	if p.FreeShippingThreshold, err = decimal.NewFromString(cfg.FreeShippingThreshold); err != nil {
		return Pricing{}, fmt.Errorf("invalid orders.free_shipping_threshold: %w", err)
	}
	return p, nil
}

// Totals computes tax, shipping and total for a subtotal. Shipping is free
// once the subtotal reaches a positive threshold.
func (p Pricing) Totals(subtotal decimal.Decimal) (tax, shipping, total decimal.Decimal) {
	tax = subtotal.Mul(p.TaxRate).Round(2)
	shipping = p.ShippingCost
	if p.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	total = subtotal.Add(tax).Add(shipping)
	return tax, shipping, total
}

type OrderItemInput struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" validate:"required,gt=0,lte=1000"`
}

type CreateOrderCommand struct {
	ShippingAddressID uuid.UUID        `json:"shipping_address_id" validate:"required"`
	Items             []OrderItemInput `json:"items" validate:"required,min=1,max=100,dive"`
	Metadata          map[string]any   `json:"metadata"`
}

type UpdateOrderStatusCommand struct {
	Status         models.OrderStatus `json:"status" validate:"required,oneof=shipped delivered cancelled returned"`
	TrackingNumber string             `json:"tracking_number" validate:"omitempty,max=100"`
	Version        *int               `json:"version"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orders    repositories.OrderRepository
	reads     repositories.OrderReadRepository
	products  repositories.ProductRepository
	variants  repositories.VariantRepository
	addresses repositories.AddressRepository
	tx        Transactor
	events    EventWriter
	cache     cache.Cache
	ttl       time.Duration
	pricing   Pricing
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orders repositories.OrderRepository,
	reads repositories.OrderReadRepository,
	products repositories.ProductRepository,
	variants repositories.VariantRepository,
	addresses repositories.AddressRepository,
	tx Transactor,
	events EventWriter,
	c cache.Cache,
	ttl time.Duration,
	pricing Pricing,
) *OrderService {
	return &OrderService{
		orders:    orders,
		reads:     reads,
		products:  products,
		variants:  variants,
		addresses: addresses,
		tx:        tx,
		events:    events,
		cache:     c,
		ttl:       ttl,
		pricing:   pricing,
	}
}

type lineKey struct {
	product uuid.UUID
	variant uuid.UUID
}

// mergeLines folds repeated product/variant pairs into one line.
func mergeLines(items []OrderItemInput) []OrderItemInput {
	index := make(map[lineKey]int, len(items))
	merged := make([]OrderItemInput, 0, len(items))
	for _, item := range items {
		key := lineKey{product: item.ProductID}
		if item.VariantID != nil {
			key.variant = *item.VariantID
		}
		if i, ok := index[key]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// CreateOrder prices the items, reserves variant stock and stores the order
// in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, cmd CreateOrderCommand) (*models.OrderDetail, error) {
	if len(cmd.Items) == 0 {
		return nil, models.NewValidationError("items", "must contain at least one item")
	}
	lines := mergeLines(cmd.Items)

	var order *models.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		address, err := s.addresses.GetByID(ctx, cmd.ShippingAddressID)
		if errors.Is(err, models.ErrNotFound) || (err == nil && address.UserID != userID) {
			return models.NewValidationError("shipping_address_id", "address does not exist")
		}
		if err != nil {
			return err
		}

		var (
			items    = make([]models.OrderItem, 0, len(lines))
			events   []models.Event
			subtotal = decimal.Zero
		)
		for i, line := range lines {
			item, stockEvent, err := s.reserveLine(ctx, i, line)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(item.TotalPrice)
			items = append(items, *item)
			if stockEvent != nil {
				events = append(events, *stockEvent)
			}
		}

		tax, shipping, total := s.pricing.Totals(subtotal)
		order = &models.Order{
			UserID:            userID,
			ShippingAddressID: address.ID,
			Subtotal:          subtotal,
			Tax:               tax,
			ShippingCost:      shipping,
			Total:             total,
			RefundedAmount:    decimal.Zero,
			Currency:          s.pricing.Currency,
			Status:            models.OrderStatusPending,
			PaymentStatus:     models.PaymentStatusPending,
			Metadata:          cmd.Metadata,
			Items:             items,
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}

		events = append([]models.Event{models.OrderEvent{
			Type:    models.EventOrderCreated,
			OrderID: order.ID,
			UserID:  userID,
			Status:  order.Status,
			Total:   order.Total,
		}}, events...)
		return addEvents(ctx, s.events, events...)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Order created", "order_id", order.ID, "user_id", userID, "total", order.Total.String())
	return s.reads.GetDetail(ctx, order.ID)
}

func (s *OrderService) reserveLine(ctx context.Context, i int, line OrderItemInput) (*models.OrderItem, *models.VariantEvent, error) {
	field := fmt.Sprintf("items[%d]", i)

	product, err := s.products.GetByID(ctx, line.ProductID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil, models.NewValidationError(field+".product_id", "product does not exist")
	}
	if err != nil {
		return nil, nil, err
	}
	if !product.IsActive {
		return nil, nil, models.NewValidationError(field+".product_id", "product is not available")
	}
	if !strings.EqualFold(product.Currency, s.pricing.Currency) {
		return nil, nil, models.NewValidationError(field+".product_id", fmt.Sprintf("product is priced in %s", product.Currency))
	}

	snapshot := map[string]any{"name": product.Name, "slug": product.Slug}
	if product.SKU != nil {
		snapshot["sku"] = *product.SKU
	}
	item := &models.OrderItem{
		ProductID: product.ID,
		Quantity:  line.Quantity,
		UnitPrice: product.BasePrice,
	}

	var stockEvent *models.VariantEvent
	if line.VariantID == nil {
		count, err := s.variants.CountByProduct(ctx, product.ID)
		if err != nil {
			return nil, nil, err
		}
		if count > 0 {
			return nil, nil, models.NewValidationError(field+".variant_id", "a variant must be selected for this product")
		}
	} else {
		variant, err := s.variants.GetByID(ctx, *line.VariantID)
		if errors.Is(err, models.ErrNotFound) || (err == nil && variant.ProductID != product.ID) {
			return nil, nil, models.NewValidationError(field+".variant_id", "variant does not belong to the product")
		}
		if err != nil {
			return nil, nil, err
		}
		if !variant.IsActive {
			return nil, nil, models.NewValidationError(field+".variant_id", "variant is not available")
		}
		if err := s.variants.AdjustStock(ctx, variant.ID, variant.Version, -line.Quantity); err != nil {
			return nil, nil, err
		}

		id := variant.ID
		item.VariantID = &id
		item.UnitPrice = variant.EffectivePrice(product)
		if variant.SKU != nil {
			snapshot["sku"] = *variant.SKU
		}
		stockEvent = &models.VariantEvent{
			Type:      models.EventVariantStockChanged,
			VariantID: variant.ID,
			ProductID: product.ID,
			OldStock:  variant.StockQuantity,
			NewStock:  variant.StockQuantity - line.Quantity,
		}
	}

	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
	item.ProductData = snapshot
	return item, stockEvent, nil
}

// restock returns the reserved units of a cancelled order.
func (s *OrderService) restock(ctx context.Context, order *models.Order) ([]models.Event, error) {
	var events []models.Event
	for _, item := range order.Items {
		if item.VariantID == nil {
			continue
		}
		variant, err := s.variants.GetByID(ctx, *item.VariantID)
		if errors.Is(err, models.ErrNotFound) {
			logger.Warn(ctx, "Variant of cancelled order no longer exists", "order_id", order.ID, "variant_id", *item.VariantID)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := s.variants.AdjustStock(ctx, variant.ID, variant.Version, item.Quantity); err != nil {
			return nil, err
		}
		events = append(events, models.VariantEvent{
			Type:      models.EventVariantStockChanged,
			VariantID: variant.ID,
			ProductID: variant.ProductID,
			OldStock:  variant.StockQuantity,
			NewStock:  variant.StockQuantity + item.Quantity,
		})
	}
	return events, nil
}

func (s *OrderService) transition(ctx context.Context, order *models.Order, status models.OrderStatus, tracking string) error {
	if err := order.TransitionTo(status, tracking); err != nil {
		return err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}

	eventType := models.EventOrderStatusChanged
	var events []models.Event
	if status == models.OrderStatusCancelled {
		eventType = models.EventOrderCancelled
		restocked, err := s.restock(ctx, order)
		if err != nil {
			return err
		}
		events = restocked
	}
	events = append([]models.Event{models.OrderEvent{
		Type:    eventType,
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  order.Status,
		Total:   order.Total,
	}}, events...)
	return addEvents(ctx, s.events, events...)
}

// UpdateStatus moves an order along its lifecycle on behalf of staff.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, cmd UpdateOrderStatusCommand) (*models.OrderDetail, error) {
	if cmd.Status == models.OrderStatusShipped && strings.TrimSpace(cmd.TrackingNumber) == "" {
		return nil, models.NewValidationError("tracking_number", "is required when shipping an order")
	}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion("order", id, order.Version, cmd.Version); err != nil {
			return err
		}
		return s.transition(ctx, order, cmd.Status, strings.TrimSpace(cmd.TrackingNumber))
	})
	if err != nil {
		return nil, err
	}
	return s.reads.GetDetail(ctx, id)
}

// CancelOrder lets the owner cancel an order that has not been paid for.
func (s *OrderService) CancelOrder(ctx context.Context, actor Actor, id uuid.UUID) (*models.OrderDetail, error) {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if order.UserID != actor.UserID && !actor.IsStaff() {
			return fmt.Errorf("order %s belongs to another user: %w", id, models.ErrForbidden)
		}
		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("only pending orders can be cancelled, order is %s: %w", order.Status, models.ErrInvalidState)
		}
		return s.transition(ctx, order, models.OrderStatusCancelled, "")
	})
	if err != nil {
		return nil, err
	}
	return s.reads.GetDetail(ctx, id)
}

// GetOrder returns an order visible to the actor. Customers only see their own.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*models.OrderDetail, error) {
	detail, err := cached(ctx, s.cache, cache.OrderKey(id), s.ttl, func() (*models.OrderDetail, error) {
		return s.reads.GetDetail(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if detail.UserID != actor.UserID && !actor.IsStaff() {
		return nil, fmt.Errorf("order %s belongs to another user: %w", id, models.ErrForbidden)
	}
	return detail, nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID, filter models.OrderFilter) (models.Page[models.OrderSummary], error) {
	filter.UserID = &userID
	return s.list(ctx, filter)
}

func (s *OrderService) ListAll(ctx context.Context, filter models.OrderFilter) (models.Page[models.OrderSummary], error) {
	return s.list(ctx, filter)
}

func (s *OrderService) list(ctx context.Context, filter models.OrderFilter) (models.Page[models.OrderSummary], error) {
	filter.PageRequest = filter.PageRequest.Normalize()
	items, total, err := s.reads.List(ctx, filter)
	if err != nil {
		return models.Page[models.OrderSummary]{}, err
	}
	return models.NewPage(items, filter.PageRequest, total), nil
}
