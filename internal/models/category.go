package models

import (
	"strings"

	"github.com/google/uuid"
)

// Category is a node of the catalog tree.
type Category struct {
	Entity
	Name        string     `json:"name" gorm:"type:varchar(100);not null"`
	Slug        string     `json:"slug" gorm:"uniqueIndex;type:varchar(150);not null"`
	Description string     `json:"description" gorm:"type:text"`
	ParentID    *uuid.UUID `json:"parent_id" gorm:"type:uuid;index"`
	Level       int        `json:"level"`
	Path        string     `json:"path" gorm:"type:varchar(1000);index"`
	IsActive    bool       `json:"is_active"`
	Version     int        `json:"version" gorm:"not null;default:1"`
}

// PlaceUnder sets level and path from the parent, or makes the category a root.
func (c *Category) PlaceUnder(parent *Category) {
	if parent == nil {
		c.ParentID = nil
		c.Level = 0
		c.Path = "/" + c.Slug
		return
	}
	id := parent.ID
	c.ParentID = &id
	c.Level = parent.Level + 1
	c.Path = parent.Path + "/" + c.Slug
}

// IsAncestorOf reports whether c lies on other's path.
func (c *Category) IsAncestorOf(other *Category) bool {
	return other.Path != c.Path && strings.HasPrefix(other.Path, c.Path+"/")
}
