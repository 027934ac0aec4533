package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// OrderRepository defines write-side data access for orders and payments.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByExternalReference(ctx context.Context, reference string) (*models.Payment, error)
	GetSucceededPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	HasPendingPayment(ctx context.Context, orderID uuid.UUID, since time.Time) (bool, error)
}

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *database.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *database.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create inserts the order and its items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.Version = 1
	if err := r.db.Conn(ctx).Create(order).Error; err != nil {
		return translateError("order", err)
	}
	return nil
}

// Update saves the order header. Items are immutable after creation.
func (r *GORMOrderRepository) Update(ctx context.Context, order *models.Order) error {
	expected := order.Version
	order.Version++
	if err := saveVersioned(r.db.Conn(ctx), "order", order, order.ID, expected); err != nil {
		order.Version = expected
		return err
	}
	return nil
}

func (r *GORMOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.Conn(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translateError(fmt.Sprintf("order %s", id), err)
	}
	return &order, nil
}

func (r *GORMOrderRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	payment.Version = 1
	if err := r.db.Conn(ctx).Create(payment).Error; err != nil {
		return translateError("payment", err)
	}
	return nil
}

func (r *GORMOrderRepository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	expected := payment.Version
	payment.Version++
	if err := saveVersioned(r.db.Conn(ctx), "payment", payment, payment.ID, expected); err != nil {
		payment.Version = expected
		return err
	}
	return nil
}

func (r *GORMOrderRepository) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Conn(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, translateError(fmt.Sprintf("payment %s", id), err)
	}
	return &payment, nil
}

func (r *GORMOrderRepository) GetPaymentByExternalReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Conn(ctx).First(&payment, "external_reference = ?", reference).Error; err != nil {
		return nil, translateError(fmt.Sprintf("payment '%s'", reference), err)
	}
	return &payment, nil
}

func (r *GORMOrderRepository) GetSucceededPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Conn(ctx).
		Where("order_id = ? AND status IN ?", orderID, []models.PaymentStatus{models.PaymentStatusSucceeded, models.PaymentStatusRefunded}).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, translateError(fmt.Sprintf("succeeded payment for order %s", orderID), err)
	}
	return &payment, nil
}

// HasPendingPayment reports whether a charge for the order was started at or
// after since and has not settled yet.
func (r *GORMOrderRepository) HasPendingPayment(ctx context.Context, orderID uuid.UUID, since time.Time) (bool, error) {
	var count int64
	err := r.db.Conn(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status = ? AND created_at >= ?", orderID, models.PaymentStatusPending, since).
		Count(&count).Error
	if err != nil {
		return false, translateError(fmt.Sprintf("payments of order %s", orderID), err)
	}
	return count > 0, nil
}
