package models

import (
	"gorm.io/datatypes"
)

// AttributeType enumerates the kinds of values an attribute holds.
type AttributeType string

const (
	AttributeTypeText       AttributeType = "text"
	AttributeTypeNumber     AttributeType = "number"
	AttributeTypeBoolean    AttributeType = "boolean"
	AttributeTypeSelect     AttributeType = "select"
	AttributeTypeColor      AttributeType = "color"
	AttributeTypeDate       AttributeType = "date"
	AttributeTypeDimensions AttributeType = "dimensions"
	AttributeTypeWeight     AttributeType = "weight"
)

// Valid reports whether t is a known attribute type.
func (t AttributeType) Valid() bool {
	switch t {
	case AttributeTypeText, AttributeTypeNumber, AttributeTypeBoolean, AttributeTypeSelect,
		AttributeTypeColor, AttributeTypeDate, AttributeTypeDimensions, AttributeTypeWeight:
		return true
	}
	return false
}

// Attribute describes a product or variant property such as color or size.
type Attribute struct {
	Entity
	Name          string            `json:"name" gorm:"uniqueIndex;type:varchar(100);not null"`
	DisplayName   string            `json:"display_name" gorm:"type:varchar(100);not null"`
	Type          AttributeType     `json:"type" gorm:"type:varchar(20);not null"`
	Filterable    bool              `json:"filterable"`
	Searchable    bool              `json:"searchable"`
	IsVariant     bool              `json:"is_variant"`
	Configuration datatypes.JSONMap `json:"configuration"`
	Version       int               `json:"version" gorm:"not null;default:1"`
}
