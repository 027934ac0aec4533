package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Read models assembled by the SQL read repositories.

type CategorySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type AttributeValue struct {
	AttributeID uuid.UUID      `json:"attribute_id"`
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Type        AttributeType  `json:"type"`
	Value       map[string]any `json:"value"`
}

type VariantDetail struct {
	ID             uuid.UUID        `json:"id"`
	ProductID      uuid.UUID        `json:"product_id"`
	SKU            *string          `json:"sku"`
	Price          *decimal.Decimal `json:"price"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	StockQuantity  int              `json:"stock_quantity"`
	IsActive       bool             `json:"is_active"`
	Metadata       map[string]any   `json:"metadata"`
	Version        int              `json:"version"`
	Attributes     []AttributeValue `json:"attributes"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type ProductDetail struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	BasePrice   decimal.Decimal   `json:"base_price"`
	Currency    string            `json:"currency"`
	SKU         *string           `json:"sku"`
	IsActive    bool              `json:"is_active"`
	Metadata    map[string]any    `json:"metadata"`
	Version     int               `json:"version"`
	Categories  []CategorySummary `json:"categories"`
	Attributes  []AttributeValue  `json:"attributes"`
	Variants    []VariantDetail   `json:"variants"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type ProductSummary struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	BasePrice    decimal.Decimal `json:"base_price"`
	Currency     string          `json:"currency"`
	SKU          *string         `json:"sku"`
	IsActive     bool            `json:"is_active"`
	VariantCount int             `json:"variant_count"`
	TotalStock   int             `json:"total_stock"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	PageRequest
	CategoryID *uuid.UUID
	Search     string
	ActiveOnly bool
	// SortBy is name, price or created_at
	SortBy   string
	SortDesc bool
}

type OrderItemDetail struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   *uuid.UUID      `json:"variant_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type PaymentSummary struct {
	ID                uuid.UUID       `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Method            string          `json:"method"`
	Provider          string          `json:"provider"`
	Status            PaymentStatus   `json:"status"`
	ExternalReference *string         `json:"external_reference"`
	ErrorCode         string          `json:"error_code,omitempty"`
	ProcessedAt       *time.Time      `json:"processed_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

type OrderDetail struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	Status          OrderStatus       `json:"status"`
	PaymentStatus   PaymentStatus     `json:"payment_status"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Tax             decimal.Decimal   `json:"tax"`
	ShippingCost    decimal.Decimal   `json:"shipping_cost"`
	Total           decimal.Decimal   `json:"total"`
	RefundedAmount  decimal.Decimal   `json:"refunded_amount"`
	Currency        string            `json:"currency"`
	TrackingNumber  string            `json:"tracking_number"`
	Version         int               `json:"version"`
	ShippingAddress *Address          `json:"shipping_address"`
	Items           []OrderItemDetail `json:"items"`
	Payments        []PaymentSummary  `json:"payments"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type OrderSummary struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	ItemCount     int             `json:"item_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	PageRequest
	UserID *uuid.UUID
	Status OrderStatus
}
