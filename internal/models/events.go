package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is a domain event recorded in the outbox.
type Event interface {
	EventType() string
	AggregateID() uuid.UUID
}

const (
	EventAttributeCreated = "attribute.created"
	EventAttributeUpdated = "attribute.updated"
	EventAttributeDeleted = "attribute.deleted"

	EventCategoryCreated = "category.created"
	EventCategoryUpdated = "category.updated"
	EventCategoryDeleted = "category.deleted"

	EventProductCreated       = "product.created"
	EventProductUpdated       = "product.updated"
	EventProductDeleted       = "product.deleted"
	EventProductStatusChanged = "product.status_changed"

	EventVariantCreated      = "variant.created"
	EventVariantUpdated      = "variant.updated"
	EventVariantDeleted      = "variant.deleted"
	EventVariantStockChanged = "variant.stock_changed"

	EventUserCreated       = "user.created"
	EventUserUpdated       = "user.updated"
	EventUserStatusChanged = "user.status_changed"
	EventUserRoleChanged   = "user.role_changed"

	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"

	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

type AttributeEvent struct {
	Type        string    `json:"type"`
	AttributeID uuid.UUID `json:"attribute_id"`
	Name        string    `json:"name"`
}

func (e AttributeEvent) EventType() string      { return e.Type }
func (e AttributeEvent) AggregateID() uuid.UUID { return e.AttributeID }

type CategoryEvent struct {
	Type       string     `json:"type"`
	CategoryID uuid.UUID  `json:"category_id"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	Slug       string     `json:"slug"`
	Path       string     `json:"path"`
	// SubtreeMoved is set when the paths of all descendants were rewritten.
	SubtreeMoved bool `json:"subtree_moved,omitempty"`
}

func (e CategoryEvent) EventType() string      { return e.Type }
func (e CategoryEvent) AggregateID() uuid.UUID { return e.CategoryID }

type ProductEvent struct {
	Type      string    `json:"type"`
	ProductID uuid.UUID `json:"product_id"`
	Slug      string    `json:"slug"`
}

func (e ProductEvent) EventType() string      { return e.Type }
func (e ProductEvent) AggregateID() uuid.UUID { return e.ProductID }

type VariantEvent struct {
	Type      string    `json:"type"`
	VariantID uuid.UUID `json:"variant_id"`
	ProductID uuid.UUID `json:"product_id"`
	OldStock  int       `json:"old_stock"`
	NewStock  int       `json:"new_stock"`
}

func (e VariantEvent) EventType() string      { return e.Type }
func (e VariantEvent) AggregateID() uuid.UUID { return e.VariantID }

type UserEvent struct {
	Type   string    `json:"type"`
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

func (e UserEvent) EventType() string      { return e.Type }
func (e UserEvent) AggregateID() uuid.UUID { return e.UserID }

type OrderEvent struct {
	Type    string          `json:"type"`
	OrderID uuid.UUID       `json:"order_id"`
	UserID  uuid.UUID       `json:"user_id"`
	Status  OrderStatus     `json:"status"`
	Total   decimal.Decimal `json:"total"`
}

func (e OrderEvent) EventType() string      { return e.Type }
func (e OrderEvent) AggregateID() uuid.UUID { return e.OrderID }

type PaymentEvent struct {
	Type      string          `json:"type"`
	PaymentID uuid.UUID       `json:"payment_id"`
	OrderID   uuid.UUID       `json:"order_id"`
	Status    PaymentStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

func (e PaymentEvent) EventType() string      { return e.Type }
func (e PaymentEvent) AggregateID() uuid.UUID { return e.PaymentID }

// OutboxMessage is a serialised domain event waiting to be processed.
type OutboxMessage struct {
	Entity
	Type        string     `gorm:"type:varchar(100);not null;index"`
	AggregateID uuid.UUID  `gorm:"type:uuid;not null"`
	Payload     string     `gorm:"type:text;not null"`
	OccurredAt  time.Time  `gorm:"not null;index"`
	ScheduledAt time.Time  `gorm:"not null"`
	ProcessedAt *time.Time `gorm:"index"`
	Attempts    int        `gorm:"not null;default:0"`
	LastError   string     `gorm:"type:text"`
}
