package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product is the catalog aggregate root. Variants hang off it.
type Product struct {
	Entity
	Name        string             `json:"name" gorm:"type:varchar(255);not null"`
	Slug        string             `json:"slug" gorm:"uniqueIndex;type:varchar(255);not null"`
	Description string             `json:"description" gorm:"type:text"`
	BasePrice   decimal.Decimal    `json:"base_price" gorm:"type:decimal(12,2);not null"`
	Currency    string             `json:"currency" gorm:"type:varchar(3);not null"`
	SKU         *string            `json:"sku" gorm:"uniqueIndex;type:varchar(100)"`
	IsActive    bool               `json:"is_active"`
	Metadata    datatypes.JSONMap  `json:"metadata"`
	Version     int                `json:"version" gorm:"not null;default:1"`
	Categories  []ProductCategory  `json:"-" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Attributes  []ProductAttribute `json:"-" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// ProductCategory links a product to a category.
type ProductCategory struct {
	ProductID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// ProductAttribute stores a product-level attribute value.
type ProductAttribute struct {
	ProductID   uuid.UUID         `gorm:"type:uuid;primaryKey"`
	AttributeID uuid.UUID         `gorm:"type:uuid;primaryKey;index"`
	Value       datatypes.JSONMap `gorm:"not null"`
}

// ProductVariant is a purchasable configuration of a product.
type ProductVariant struct {
	Entity
	ProductID     uuid.UUID          `json:"product_id" gorm:"type:uuid;not null;index"`
	SKU           *string            `json:"sku" gorm:"uniqueIndex;type:varchar(100)"`
	Price         *decimal.Decimal   `json:"price" gorm:"type:decimal(12,2)"`
	StockQuantity int                `json:"stock_quantity" gorm:"not null;default:0"`
	IsActive      bool               `json:"is_active"`
	Metadata      datatypes.JSONMap  `json:"metadata"`
	Version       int                `json:"version" gorm:"not null;default:1"`
	Attributes    []VariantAttribute `json:"-" gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
}

// VariantAttribute stores a variant-defining attribute value.
type VariantAttribute struct {
	VariantID   uuid.UUID         `gorm:"type:uuid;primaryKey"`
	AttributeID uuid.UUID         `gorm:"type:uuid;primaryKey;index"`
	Value       datatypes.JSONMap `gorm:"not null"`
}

// EffectivePrice is the variant price, falling back to the product base price.
func (v *ProductVariant) EffectivePrice(p *Product) decimal.Decimal {
	if v.Price != nil {
		return *v.Price
	}
	return p.BasePrice
}

// CanReserve reports whether quantity units are in stock.
func (v *ProductVariant) CanReserve(quantity int) bool {
	return v.IsActive && quantity > 0 && v.StockQuantity >= quantity
}
