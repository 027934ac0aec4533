package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopilent/internal/cache"
	"shopilent/internal/database"
	"shopilent/internal/models"
	"shopilent/internal/outbox"
	"shopilent/internal/repositories"
)

type recordingPublisher struct {
	mu       sync.Mutex
	ids      []string
	messages []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, id, eventType, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, id)
	p.messages = append(p.messages, eventType+"/"+key)
	return nil
}

func setup(t *testing.T) (*database.DB, *outbox.Writer, *outbox.Processor, repositories.OutboxRepository) {
	db := database.OpenTest(t)
	repo := repositories.NewGORMOutboxRepository(db)
	processor := outbox.NewProcessor(repo, outbox.Config{BatchSize: 10, MaxAttempts: 3, BaseBackoff: time.Millisecond}, nil)
	return db, outbox.NewWriter(repo), processor, repo
}

func TestProcessor_InvalidatesCacheAndRelays(t *testing.T) {
	db, writer, processor, repo := setup(t)
	ctx := context.Background()

	local, err := cache.NewLocalCache(ctx, time.Minute)
	require.NoError(t, err)
	defer local.Close()

	publisher := &recordingPublisher{}
	processor.Register(outbox.Wildcard, outbox.NewCacheInvalidationHandler(local))
	processor.Register(outbox.Wildcard, outbox.NewRelayHandler(publisher))

	productID := uuid.New()
	require.NoError(t, cache.SetJSON(ctx, local, cache.ProductKey(productID), map[string]string{"name": "Lamp"}, time.Minute))
	require.NoError(t, cache.SetJSON(ctx, local, cache.ListKey(cache.ProductsPrefix, "page=1"), []string{"Lamp"}, time.Minute))

	err = db.WithinTransaction(ctx, func(ctx context.Context) error {
		return writer.Add(ctx, models.VariantEvent{Type: models.EventVariantStockChanged, VariantID: uuid.New(), ProductID: productID, OldStock: 3, NewStock: 1})
	})
	require.NoError(t, err)

	n, err := processor.ProcessOutboxMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ := local.Get(ctx, cache.ProductKey(productID))
	assert.False(t, ok)
	_, ok, _ = local.Get(ctx, cache.ListKey(cache.ProductsPrefix, "page=1"))
	assert.False(t, ok)
	require.Len(t, publisher.messages, 1)
	assert.Contains(t, publisher.messages[0], models.EventVariantStockChanged)

	pending, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending)

	require.Len(t, publisher.ids, 1)
	_, err = uuid.Parse(publisher.ids[0])
	assert.NoError(t, err)
	assert.NotContains(t, publisher.messages[0], publisher.ids[0], "message id differs from the aggregate key")

	n, err = processor.ProcessOutboxMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriter_RolledBackTransactionLeavesNoMessage(t *testing.T) {
	db, writer, _, repo := setup(t)
	ctx := context.Background()

	err := db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := writer.Add(ctx, models.ProductEvent{Type: models.EventProductCreated, ProductID: uuid.New(), Slug: "lamp"}); err != nil {
			return err
		}
		return errors.New("rollback")
	})
	require.Error(t, err)

	pending, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending)
}

func TestProcessor_FailedHandlerIsRetriedUntilMaxAttempts(t *testing.T) {
	db, writer, processor, repo := setup(t)
	ctx := context.Background()

	calls := 0
	processor.Register(models.EventOrderCreated, outbox.HandlerFunc(func(context.Context, models.OutboxMessage) error {
		calls++
		return errors.New("broker down")
	}))

	orderID := uuid.New()
	require.NoError(t, db.WithinTransaction(ctx, func(ctx context.Context) error {
		return writer.Add(ctx, models.OrderEvent{Type: models.EventOrderCreated, OrderID: orderID, Status: models.OrderStatusPending})
	}))

	for i := 0; i < 5; i++ {
		n, err := processor.ProcessOutboxMessages(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 3, calls, "message is abandoned after MaxAttempts")

	messages, err := repo.FetchPending(ctx, time.Now().UTC().Add(time.Hour), 10, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, 3, messages[0].Attempts)
	assert.Equal(t, "broker down", messages[0].LastError)
}

func TestInvalidations(t *testing.T) {
	productID := uuid.New()
	orderID := uuid.New()
	categoryID := uuid.New()

	tests := []struct {
		name     string
		msg      models.OutboxMessage
		keys     []string
		prefixes []string
	}{
		{
			name:     "product update",
			msg:      models.OutboxMessage{Type: models.EventProductUpdated, AggregateID: productID, Payload: `{"product_id":"` + productID.String() + `"}`},
			keys:     []string{cache.ProductKey(productID)},
			prefixes: []string{cache.ProductsPrefix},
		},
		{
			name:     "category delete",
			msg:      models.OutboxMessage{Type: models.EventCategoryDeleted, AggregateID: categoryID, Payload: `{}`},
			keys:     []string{cache.CategoryKey(categoryID)},
			prefixes: []string{cache.CategoriesPrefix, cache.ProductsPrefix, cache.ProductPrefix},
		},
		{
			name:     "category moved",
			msg:      models.OutboxMessage{Type: models.EventCategoryUpdated, AggregateID: categoryID, Payload: `{"subtree_moved":true}`},
			keys:     []string{cache.CategoryKey(categoryID)},
			prefixes: []string{cache.CategoriesPrefix, cache.CategoryPrefix, cache.ProductsPrefix, cache.ProductPrefix},
		},
		{
			name:     "attribute update",
			msg:      models.OutboxMessage{Type: models.EventAttributeUpdated, AggregateID: categoryID, Payload: `{}`},
			keys:     []string{cache.AttributeKey(categoryID)},
			prefixes: []string{cache.AttributesPrefix, cache.ProductPrefix},
		},
		{
			name: "payment refunded",
			msg:  models.OutboxMessage{Type: models.EventPaymentRefunded, AggregateID: uuid.New(), Payload: `{"order_id":"` + orderID.String() + `"}`},
			keys: []string{cache.OrderKey(orderID)},
		},
		{
			name: "unknown event",
			msg:  models.OutboxMessage{Type: "something.else", AggregateID: uuid.New(), Payload: `{}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, prefixes, err := outbox.Invalidations(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.keys, keys)
			assert.Equal(t, tt.prefixes, prefixes)
		})
	}

	_, _, err := outbox.Invalidations(models.OutboxMessage{Type: models.EventProductCreated, Payload: "not json"})
	assert.Error(t, err)
}

func TestProcessor_CategoryMoveDropsDescendantsAndProductDetails(t *testing.T) {
	db, writer, processor, _ := setup(t)
	ctx := context.Background()

	local, err := cache.NewLocalCache(ctx, time.Minute)
	require.NoError(t, err)
	defer local.Close()
	processor.Register(outbox.Wildcard, outbox.NewCacheInvalidationHandler(local))

	parentID, childID, productID, orderID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	for _, key := range []string{cache.CategoryKey(parentID), cache.CategoryKey(childID), cache.ProductKey(productID), cache.OrderKey(orderID)} {
		require.NoError(t, cache.SetJSON(ctx, local, key, map[string]string{"stale": "yes"}, time.Minute))
	}

	require.NoError(t, db.WithinTransaction(ctx, func(ctx context.Context) error {
		return writer.Add(ctx, models.CategoryEvent{
			Type:         models.EventCategoryUpdated,
			CategoryID:   parentID,
			Slug:         "alpha",
			Path:         "/gamma/alpha",
			SubtreeMoved: true,
		})
	}))
	_, err = processor.ProcessOutboxMessages(ctx)
	require.NoError(t, err)

	for _, key := range []string{cache.CategoryKey(parentID), cache.CategoryKey(childID), cache.ProductKey(productID)} {
		_, ok, _ := local.Get(ctx, key)
		assert.False(t, ok, key)
	}
	_, ok, _ := local.Get(ctx, cache.OrderKey(orderID))
	assert.True(t, ok, "unrelated entries survive")
}
