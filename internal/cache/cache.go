// Package cache holds read-model caching for catalog, order and user views.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cache is a byte-oriented key/value cache with prefix invalidation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// GetJSON decodes a cached value into T. A miss returns (nil, false, nil).
func GetJSON[T any](ctx context.Context, c Cache, key string) (*T, bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return &v, true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Key prefixes. List keys live under the plural prefix so one prefix delete
// drops every cached page.
const (
	ProductPrefix    = "product:"
	ProductsPrefix   = "products:"
	CategoryPrefix   = "category:"
	CategoriesPrefix = "categories:"
	AttributePrefix  = "attribute:"
	AttributesPrefix = "attributes:"
	OrderPrefix      = "order:"
	UserPrefix       = "user:"
)

func ProductKey(id uuid.UUID) string   { return ProductPrefix + id.String() }
func CategoryKey(id uuid.UUID) string  { return CategoryPrefix + id.String() }
func AttributeKey(id uuid.UUID) string { return AttributePrefix + id.String() }
func OrderKey(id uuid.UUID) string     { return OrderPrefix + id.String() }
func UserKey(id uuid.UUID) string      { return UserPrefix + id.String() }

// ListKey builds a page key under prefix, e.g. "attributes:page=1:size=20".
func ListKey(prefix string, parts ...any) string {
	key := prefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprint(p)
	}
	return key
}
