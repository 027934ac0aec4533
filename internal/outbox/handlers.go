package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"shopilent/internal/cache"
	"shopilent/internal/models"
)

// CacheInvalidationHandler drops cached read models touched by an event.
type CacheInvalidationHandler struct {
	cache cache.Cache
}

func NewCacheInvalidationHandler(c cache.Cache) *CacheInvalidationHandler {
	return &CacheInvalidationHandler{cache: c}
}

// eventRefs holds the ids any event payload may carry.
type eventRefs struct {
	ProductID    uuid.UUID `json:"product_id"`
	OrderID      uuid.UUID `json:"order_id"`
	SubtreeMoved bool      `json:"subtree_moved"`
}

// Invalidations returns the keys and prefixes to delete for msg.
func Invalidations(msg models.OutboxMessage) (keys []string, prefixes []string, err error) {
	var refs eventRefs
	if err := json.Unmarshal([]byte(msg.Payload), &refs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}

	switch msg.Type {
	case models.EventProductCreated, models.EventProductUpdated,
		models.EventProductDeleted, models.EventProductStatusChanged:
		keys = append(keys, cache.ProductKey(msg.AggregateID))
		prefixes = append(prefixes, cache.ProductsPrefix)
	case models.EventVariantCreated, models.EventVariantUpdated,
		models.EventVariantDeleted, models.EventVariantStockChanged:
		keys = append(keys, cache.ProductKey(refs.ProductID))
		prefixes = append(prefixes, cache.ProductsPrefix)
	case models.EventCategoryCreated, models.EventCategoryUpdated, models.EventCategoryDeleted:
		keys = append(keys, cache.CategoryKey(msg.AggregateID))
		prefixes = append(prefixes, cache.CategoriesPrefix)
		// every descendant row carries a rewritten path and level
		if refs.SubtreeMoved {
			prefixes = append(prefixes, cache.CategoryPrefix)
		}
		// listings filter by category and details embed category names
		prefixes = append(prefixes, cache.ProductsPrefix, cache.ProductPrefix)
	case models.EventAttributeCreated, models.EventAttributeUpdated, models.EventAttributeDeleted:
		keys = append(keys, cache.AttributeKey(msg.AggregateID))
		// product details embed attribute display names
		prefixes = append(prefixes, cache.AttributesPrefix, cache.ProductPrefix)
	case models.EventOrderCreated, models.EventOrderStatusChanged, models.EventOrderCancelled:
		keys = append(keys, cache.OrderKey(msg.AggregateID))
	case models.EventPaymentSucceeded, models.EventPaymentFailed, models.EventPaymentRefunded:
		keys = append(keys, cache.OrderKey(refs.OrderID))
	case models.EventUserCreated, models.EventUserUpdated,
		models.EventUserStatusChanged, models.EventUserRoleChanged:
		keys = append(keys, cache.UserKey(msg.AggregateID))
	}
	return keys, prefixes, nil
}

func (h *CacheInvalidationHandler) Handle(ctx context.Context, msg models.OutboxMessage) error {
	keys, prefixes, err := Invalidations(msg)
	if err != nil {
		return err
	}
	if err := h.cache.Delete(ctx, keys...); err != nil {
		return err
	}
	for _, prefix := range prefixes {
		if err := h.cache.DeleteByPrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

// Publisher sends a message to an external broker. id identifies the
// outbox message so consumers can drop redeliveries. key orders messages
// of one aggregate.
type Publisher interface {
	Publish(ctx context.Context, id, eventType, key string, body []byte) error
}

// RelayHandler forwards every outbox message to a broker, keyed by aggregate id.
type RelayHandler struct {
	publisher Publisher
}

func NewRelayHandler(p Publisher) *RelayHandler {
	return &RelayHandler{publisher: p}
}

func (h *RelayHandler) Handle(ctx context.Context, msg models.OutboxMessage) error {
	return h.publisher.Publish(ctx, msg.ID.String(), msg.Type, msg.AggregateID.String(), []byte(msg.Payload))
}
