package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// PaymentStatus is the money state of an order or payment.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusCanceled          PaymentStatus = "canceled"
)

// Order is a customer purchase.
type Order struct {
	Entity
	UserID            uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	ShippingAddressID uuid.UUID         `json:"shipping_address_id" gorm:"type:uuid;not null"`
	Subtotal          decimal.Decimal   `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	Tax               decimal.Decimal   `json:"tax" gorm:"type:decimal(12,2);not null"`
	ShippingCost      decimal.Decimal   `json:"shipping_cost" gorm:"type:decimal(12,2);not null"`
	Total             decimal.Decimal   `json:"total" gorm:"type:decimal(12,2);not null"`
	RefundedAmount    decimal.Decimal   `json:"refunded_amount" gorm:"type:decimal(12,2);not null;default:0"`
	Currency          string            `json:"currency" gorm:"type:varchar(3);not null"`
	Status            OrderStatus       `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentStatus     PaymentStatus     `json:"payment_status" gorm:"type:varchar(20);not null"`
	TrackingNumber    string            `json:"tracking_number" gorm:"type:varchar(100)"`
	Metadata          datatypes.JSONMap `json:"metadata"`
	Version           int               `json:"version" gorm:"not null;default:1"`
	Items             []OrderItem       `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem is a priced line of an order.
type OrderItem struct {
	Entity
	OrderID     uuid.UUID         `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID         `json:"product_id" gorm:"type:uuid;not null"`
	VariantID   *uuid.UUID        `json:"variant_id" gorm:"type:uuid"`
	Quantity    int               `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal   `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TotalPrice  decimal.Decimal   `json:"total_price" gorm:"type:decimal(12,2);not null"`
	ProductData datatypes.JSONMap `json:"product_data"`
}

func (o *Order) transitionError(to OrderStatus) error {
	return fmt.Errorf("cannot move order from %s to %s: %w", o.Status, to, ErrInvalidState)
}

// MarkAsPaid records a successful payment and starts processing.
func (o *Order) MarkAsPaid() error {
	if o.PaymentStatus == PaymentStatusSucceeded {
		return fmt.Errorf("order is already paid: %w", ErrInvalidState)
	}
	if o.Status != OrderStatusPending {
		return o.transitionError(OrderStatusProcessing)
	}
	o.PaymentStatus = PaymentStatusSucceeded
	o.Status = OrderStatusProcessing
	return nil
}

// MarkPaymentFailed records a failed attempt; the order stays payable.
func (o *Order) MarkPaymentFailed() {
	if o.PaymentStatus != PaymentStatusSucceeded {
		o.PaymentStatus = PaymentStatusFailed
	}
}

// Ship moves a processing order to shipped.
func (o *Order) Ship(trackingNumber string) error {
	if o.Status != OrderStatusProcessing {
		return o.transitionError(OrderStatusShipped)
	}
	o.Status = OrderStatusShipped
	o.TrackingNumber = trackingNumber
	return nil
}

// Deliver moves a shipped order to delivered.
func (o *Order) Deliver() error {
	if o.Status != OrderStatusShipped {
		return o.transitionError(OrderStatusDelivered)
	}
	o.Status = OrderStatusDelivered
	return nil
}

// Cancel is allowed until the order ships.
func (o *Order) Cancel() error {
	if o.Status != OrderStatusPending && o.Status != OrderStatusProcessing {
		return o.transitionError(OrderStatusCancelled)
	}
	o.Status = OrderStatusCancelled
	return nil
}

// Return marks a delivered order as returned.
func (o *Order) Return() error {
	if o.Status != OrderStatusDelivered {
		return o.transitionError(OrderStatusReturned)
	}
	o.Status = OrderStatusReturned
	return nil
}

// TransitionTo applies the named status through the matching domain method.
// Processing is reached only through MarkAsPaid when a payment is captured.
func (o *Order) TransitionTo(status OrderStatus, trackingNumber string) error {
	switch status {
	case OrderStatusProcessing:
		return fmt.Errorf("order %s moves to processing only when a payment is captured: %w", o.ID, ErrInvalidState)
	case OrderStatusShipped:
		return o.Ship(trackingNumber)
	case OrderStatusDelivered:
		return o.Deliver()
	case OrderStatusCancelled:
		return o.Cancel()
	case OrderStatusReturned:
		return o.Return()
	}
	return NewValidationError("status", fmt.Sprintf("unsupported status '%s'", status))
}

// RefundableAmount is what has been paid and not yet refunded.
func (o *Order) RefundableAmount() decimal.Decimal {
	if o.PaymentStatus != PaymentStatusSucceeded && o.PaymentStatus != PaymentStatusPartiallyRefunded {
		return decimal.Zero
	}
	return o.Total.Sub(o.RefundedAmount)
}

// ApplyRefund records a refund of amount against the order total.
func (o *Order) ApplyRefund(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount", "must be greater than zero")
	}
	if amount.GreaterThan(o.RefundableAmount()) {
		return NewValidationError("amount", "exceeds the refundable amount")
	}
	o.RefundedAmount = o.RefundedAmount.Add(amount)
	if o.RefundedAmount.Equal(o.Total) {
		o.PaymentStatus = PaymentStatusRefunded
	} else {
		o.PaymentStatus = PaymentStatusPartiallyRefunded
	}
	return nil
}

// Payment is one attempt to charge an order.
type Payment struct {
	Entity
	OrderID           uuid.UUID         `json:"order_id" gorm:"type:uuid;not null;index"`
	UserID            uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal   `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency          string            `json:"currency" gorm:"type:varchar(3);not null"`
	Method            string            `json:"method" gorm:"type:varchar(20);not null"`
	Provider          string            `json:"provider" gorm:"type:varchar(20);not null"`
	Status            PaymentStatus     `json:"status" gorm:"type:varchar(20);not null"`
	ExternalReference *string           `json:"external_reference" gorm:"uniqueIndex;type:varchar(255)"`
	TransactionID     string            `json:"transaction_id" gorm:"type:varchar(255)"`
	ErrorCode         string            `json:"error_code" gorm:"type:varchar(50)"`
	ErrorMessage      string            `json:"error_message" gorm:"type:text"`
	ProcessedAt       *time.Time        `json:"processed_at"`
	Metadata          datatypes.JSONMap `json:"metadata"`
	Version           int               `json:"version" gorm:"not null;default:1"`
}

// IsFinal reports whether the payment reached a terminal state.
func (p *Payment) IsFinal() bool {
	switch p.Status {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCanceled:
		return true
	}
	return false
}

// MarkSucceeded records a captured charge.
func (p *Payment) MarkSucceeded(transactionID string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("payment is %s: %w", p.Status, ErrInvalidState)
	}
	p.Status = PaymentStatusSucceeded
	p.TransactionID = transactionID
	p.ProcessedAt = &now
	p.ErrorCode = ""
	p.ErrorMessage = ""
	return nil
}

// MarkFailed records a declined or errored charge.
func (p *Payment) MarkFailed(code, message string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("payment is %s: %w", p.Status, ErrInvalidState)
	}
	p.Status = PaymentStatusFailed
	p.ErrorCode = code
	p.ErrorMessage = message
	p.ProcessedAt = &now
	return nil
}

// MarkCanceled records an abandoned charge.
func (p *Payment) MarkCanceled(now time.Time) error {
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("payment is %s: %w", p.Status, ErrInvalidState)
	}
	p.Status = PaymentStatusCanceled
	p.ProcessedAt = &now
	return nil
}

// MarkRefunded records a full refund of a captured charge.
func (p *Payment) MarkRefunded() error {
	if p.Status != PaymentStatusSucceeded {
		return fmt.Errorf("payment is %s: %w", p.Status, ErrInvalidState)
	}
	p.Status = PaymentStatusRefunded
	return nil
}
