package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"shopilent/internal/database"
	"shopilent/internal/models"
	"shopilent/internal/repositories"
)

func strPtr(s string) *string { return &s }

func seedProduct(t *testing.T, db *database.DB, name, slug string, price string) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:      name,
		Slug:      slug,
		BasePrice: decimal.RequireFromString(price),
		Currency:  "USD",
		IsActive:  true,
	}
	require.NoError(t, repositories.NewGORMProductRepository(db).Create(context.Background(), product))
	return product
}

func TestAttributeRepository_DuplicateNameIsAlreadyExists(t *testing.T) {
	db := database.OpenTest(t)
	repo := repositories.NewGORMAttributeRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Attribute{Name: "color", DisplayName: "Color", Type: models.AttributeTypeColor}))
	err := repo.Create(ctx, &models.Attribute{Name: "color", DisplayName: "Colour", Type: models.AttributeTypeText})

	assert.True(t, errors.Is(err, models.ErrAlreadyExists), "got %v", err)
}

func TestProductRepository_UpdateChecksVersion(t *testing.T) {
	db := database.OpenTest(t)
	repo := repositories.NewGORMProductRepository(db)
	ctx := context.Background()
	product := seedProduct(t, db, "Desk Lamp", "desk-lamp", "25.00")

	first, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)

	first.Name = "Brass Desk Lamp"
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Name = "Steel Desk Lamp"
	err = repo.Update(ctx, second)
	assert.True(t, errors.Is(err, models.ErrConcurrencyConflict), "got %v", err)
	assert.Equal(t, 1, second.Version)

	stored, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Brass Desk Lamp", stored.Name)

	missing := &models.Product{Entity: models.Entity{ID: uuid.New()}, Version: 1}
	err = repo.Update(ctx, missing)
	assert.True(t, errors.Is(err, models.ErrNotFound), "got %v", err)
}

func TestProductRepository_DeleteRemovesVariants(t *testing.T) {
	db := database.OpenTest(t)
	products := repositories.NewGORMProductRepository(db)
	variants := repositories.NewGORMVariantRepository(db)
	ctx := context.Background()
	product := seedProduct(t, db, "Mug", "mug", "9.50")

	variant := &models.ProductVariant{ProductID: product.ID, SKU: strPtr("MUG-RED"), StockQuantity: 3, IsActive: true}
	require.NoError(t, variants.Create(ctx, variant))

	require.NoError(t, products.Delete(ctx, product.ID))

	_, err := variants.GetByID(ctx, variant.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.True(t, errors.Is(products.Delete(ctx, product.ID), models.ErrNotFound))
}

func TestVariantRepository_AdjustStock(t *testing.T) {
	db := database.OpenTest(t)
	repo := repositories.NewGORMVariantRepository(db)
	ctx := context.Background()
	product := seedProduct(t, db, "T-Shirt", "t-shirt", "15.00")

	variant := &models.ProductVariant{ProductID: product.ID, SKU: strPtr("TS-M"), StockQuantity: 5, IsActive: true}
	require.NoError(t, repo.Create(ctx, variant))

	require.NoError(t, repo.AdjustStock(ctx, variant.ID, 1, -3))
	stored, err := repo.GetByID(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.StockQuantity)
	assert.Equal(t, 2, stored.Version)

	err = repo.AdjustStock(ctx, variant.ID, 2, -3)
	assert.True(t, errors.Is(err, models.ErrValidation), "got %v", err)

	err = repo.AdjustStock(ctx, variant.ID, 1, 1)
	assert.True(t, errors.Is(err, models.ErrConcurrencyConflict), "got %v", err)

	stored, err = repo.GetByID(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.StockQuantity)
}

func TestCategoryRepository_MoveSubtree(t *testing.T) {
	db := database.OpenTest(t)
	repo := repositories.NewGORMCategoryRepository(db)
	ctx := context.Background()

	create := func(name, slug string, parent *models.Category) *models.Category {
		c := &models.Category{Name: name, Slug: slug, IsActive: true}
		c.PlaceUnder(parent)
		require.NoError(t, repo.Create(ctx, c))
		return c
	}
	home := create("Home", "home", nil)
	kitchen := create("Kitchen", "kitchen", home)
	create("Knives", "knives", kitchen)
	garden := create("Garden", "garden", nil)

	oldPath := kitchen.Path
	kitchen.PlaceUnder(garden)
	require.NoError(t, repo.Update(ctx, kitchen))
	require.NoError(t, repo.MoveSubtree(ctx, oldPath, kitchen.Path, 0))

	knives, err := repo.GetBySlug(ctx, "knives")
	require.NoError(t, err)
	assert.Equal(t, "/garden/kitchen/knives", knives.Path)
	assert.Equal(t, 2, knives.Level)

	hasChildren, err := repo.HasChildren(ctx, home.ID)
	require.NoError(t, err)
	assert.False(t, hasChildren)
}

func TestWithinTransaction_RollsBackOnError(t *testing.T) {
	db := database.OpenTest(t)
	repo := repositories.NewGORMAttributeRepository(db)
	boom := errors.New("boom")

	err := db.WithinTransaction(context.Background(), func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, &models.Attribute{Name: "size", DisplayName: "Size", Type: models.AttributeTypeSelect}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByName(context.Background(), "size")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestProductReadRepository_GetDetailAssemblesAggregate(t *testing.T) {
	db := database.OpenTest(t)
	ctx := context.Background()
	products := repositories.NewGORMProductRepository(db)
	variants := repositories.NewGORMVariantRepository(db)
	attributes := repositories.NewGORMAttributeRepository(db)
	categories := repositories.NewGORMCategoryRepository(db)
	reader := repositories.NewSQLProductReadRepository(db)

	color := &models.Attribute{Name: "color", DisplayName: "Color", Type: models.AttributeTypeColor, IsVariant: true}
	material := &models.Attribute{Name: "material", DisplayName: "Material", Type: models.AttributeTypeText}
	require.NoError(t, attributes.Create(ctx, color))
	require.NoError(t, attributes.Create(ctx, material))

	apparel := &models.Category{Name: "Apparel", Slug: "apparel", IsActive: true}
	apparel.PlaceUnder(nil)
	require.NoError(t, categories.Create(ctx, apparel))

	product := seedProduct(t, db, "Hoodie", "hoodie", "40.00")
	require.NoError(t, products.ReplaceCategories(ctx, product.ID, []uuid.UUID{apparel.ID}))
	require.NoError(t, products.ReplaceAttributes(ctx, product.ID, []models.ProductAttribute{
		{AttributeID: material.ID, Value: datatypes.JSONMap{"value": "cotton"}},
	}))

	price := decimal.RequireFromString("45.00")
	red := &models.ProductVariant{ProductID: product.ID, SKU: strPtr("HD-RED"), Price: &price, StockQuantity: 4, IsActive: true}
	blue := &models.ProductVariant{ProductID: product.ID, SKU: strPtr("HD-BLUE"), StockQuantity: 2, IsActive: true}
	require.NoError(t, variants.Create(ctx, red))
	require.NoError(t, variants.Create(ctx, blue))
	require.NoError(t, variants.ReplaceAttributes(ctx, red.ID, []models.VariantAttribute{
		{AttributeID: color.ID, Value: datatypes.JSONMap{"value": "red"}},
	}))

	detail, err := reader.GetDetail(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hoodie", detail.Name)
	assert.True(t, detail.BasePrice.Equal(decimal.RequireFromString("40.00")))
	require.Len(t, detail.Categories, 1)
	assert.Equal(t, "apparel", detail.Categories[0].Slug)
	require.Len(t, detail.Attributes, 1)
	assert.Equal(t, "cotton", detail.Attributes[0].Value["value"])
	require.Len(t, detail.Variants, 2)

	bySKU := map[string]models.VariantDetail{}
	for _, v := range detail.Variants {
		bySKU[*v.SKU] = v
	}
	assert.True(t, bySKU["HD-RED"].EffectivePrice.Equal(price))
	assert.True(t, bySKU["HD-BLUE"].EffectivePrice.Equal(decimal.RequireFromString("40.00")))
	require.Len(t, bySKU["HD-RED"].Attributes, 1)
	assert.Equal(t, "red", bySKU["HD-RED"].Attributes[0].Value["value"])
	assert.Empty(t, bySKU["HD-BLUE"].Attributes)

	bySlug, err := reader.GetDetailBySlug(ctx, "hoodie")
	require.NoError(t, err)
	assert.Equal(t, product.ID, bySlug.ID)

	_, err = reader.GetDetail(ctx, uuid.New())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestProductReadRepository_ListFiltersAndPages(t *testing.T) {
	db := database.OpenTest(t)
	ctx := context.Background()
	reader := repositories.NewSQLProductReadRepository(db)
	categories := repositories.NewGORMCategoryRepository(db)
	products := repositories.NewGORMProductRepository(db)

	seedProduct(t, db, "Alpha Chair", "alpha-chair", "50.00")
	beta := seedProduct(t, db, "Beta Table", "beta-table", "120.00")
	seedProduct(t, db, "100% Wool Rug", "wool-rug", "80.00")
	inactive := seedProduct(t, db, "Gamma Chair", "gamma-chair", "60.00")
	inactive.IsActive = false
	require.NoError(t, products.Update(ctx, inactive))

	furniture := &models.Category{Name: "Furniture", Slug: "furniture", IsActive: true}
	furniture.PlaceUnder(nil)
	require.NoError(t, categories.Create(ctx, furniture))
	require.NoError(t, products.ReplaceCategories(ctx, beta.ID, []uuid.UUID{furniture.ID}))

	all, total, err := reader.List(ctx, models.ProductFilter{SortBy: "name"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, "100% Wool Rug", all[0].Name)

	active, total, err := reader.List(ctx, models.ProductFilter{ActiveOnly: true, Search: "chair"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, "Alpha Chair", active[0].Name)

	percent, total, err := reader.List(ctx, models.ProductFilter{Search: "100%"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "wool-rug", percent[0].Slug)

	byCategory, total, err := reader.List(ctx, models.ProductFilter{CategoryID: &furniture.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, beta.ID, byCategory[0].ID)

	page, total, err := reader.List(ctx, models.ProductFilter{
		PageRequest: models.PageRequest{Page: 2, PageSize: 3},
		SortBy:      "price",
		SortDesc:    true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Alpha Chair", page[0].Name)
}

func TestOrderReadRepository_GetDetailAndList(t *testing.T) {
	db := database.OpenTest(t)
	ctx := context.Background()
	users := repositories.NewGORMUserRepository(db)
	addresses := repositories.NewGORMAddressRepository(db)
	orders := repositories.NewGORMOrderRepository(db)
	reader := repositories.NewSQLOrderReadRepository(db)
	product := seedProduct(t, db, "Kettle", "kettle", "30.00")

	user := &models.User{Email: "Buyer@Example.com", PasswordHash: "x", Role: models.RoleCustomer, IsActive: true}
	require.NoError(t, users.Create(ctx, user))
	address := &models.Address{
		UserID: user.ID, AddressLine1: "1 Main St", City: "Springfield", PostalCode: "12345",
		Country: "US", AddressType: models.AddressTypeShipping, IsDefault: true,
	}
	require.NoError(t, addresses.Create(ctx, address))

	order := &models.Order{
		UserID:            user.ID,
		ShippingAddressID: address.ID,
		Subtotal:          decimal.RequireFromString("60.00"),
		Tax:               decimal.RequireFromString("6.00"),
		ShippingCost:      decimal.RequireFromString("5.00"),
		Total:             decimal.RequireFromString("71.00"),
		Currency:          "USD",
		Status:            models.OrderStatusPending,
		PaymentStatus:     models.PaymentStatusPending,
		Items: []models.OrderItem{{
			ProductID:   product.ID,
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("30.00"),
			TotalPrice:  decimal.RequireFromString("60.00"),
			ProductData: datatypes.JSONMap{"name": "Kettle", "sku": "KT-1"},
		}},
	}
	require.NoError(t, orders.Create(ctx, order))

	now := time.Now().UTC()
	payment := &models.Payment{
		OrderID: order.ID, UserID: user.ID, Amount: order.Total, Currency: "USD",
		Method: "card", Provider: "stripe", Status: models.PaymentStatusSucceeded,
		ExternalReference: strPtr("pi_123"), ProcessedAt: &now,
	}
	require.NoError(t, orders.CreatePayment(ctx, payment))

	detail, err := reader.GetDetail(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, detail.UserID)
	assert.True(t, detail.Total.Equal(decimal.RequireFromString("71.00")))
	require.NotNil(t, detail.ShippingAddress)
	assert.Equal(t, "Springfield", detail.ShippingAddress.City)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "Kettle", detail.Items[0].ProductName)
	assert.Nil(t, detail.Items[0].VariantID)
	require.Len(t, detail.Payments, 1)
	assert.Equal(t, "pi_123", *detail.Payments[0].ExternalReference)
	assert.NotNil(t, detail.Payments[0].ProcessedAt)

	list, total, err := reader.List(ctx, models.OrderFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, 2, list[0].ItemCount)

	other := uuid.New()
	_, total, err = reader.List(ctx, models.OrderFilter{UserID: &other})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	_, err = reader.GetDetail(ctx, uuid.New())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestOutboxRepository_FetchPendingHonoursScheduleAndAttempts(t *testing.T) {
	db := database.OpenTest(t)
	repo := repositories.NewGORMOutboxRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	due := &models.OutboxMessage{Type: models.EventProductCreated, AggregateID: uuid.New(), Payload: "{}", OccurredAt: now.Add(-time.Minute), ScheduledAt: now.Add(-time.Minute)}
	later := &models.OutboxMessage{Type: models.EventProductUpdated, AggregateID: uuid.New(), Payload: "{}", OccurredAt: now, ScheduledAt: now.Add(time.Hour)}
	exhausted := &models.OutboxMessage{Type: models.EventProductDeleted, AggregateID: uuid.New(), Payload: "{}", OccurredAt: now, ScheduledAt: now.Add(-time.Second), Attempts: 5}
	for _, m := range []*models.OutboxMessage{due, later, exhausted} {
		require.NoError(t, repo.Add(ctx, m))
	}

	pending, err := repo.FetchPending(ctx, now, 5, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, due.ID, pending[0].ID)

	require.NoError(t, repo.MarkProcessed(ctx, due.ID, now))
	count, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestUserRepository_RecordFailedLoginLocksAtThreshold(t *testing.T) {
	db := database.OpenTest(t)
	ctx := context.Background()
	users := repositories.NewGORMUserRepository(db)

	user := &models.User{Email: "guess@example.com", PasswordHash: "x", Role: models.RoleCustomer, IsActive: true}
	require.NoError(t, users.Create(ctx, user))
	lockoutEnd := time.Now().Add(models.LockoutDuration).UTC().Truncate(time.Second)

	// The stale in-memory copy is never written back, so every attempt counts.
	for i := 0; i < models.MaxFailedLoginAttempts-1; i++ {
		require.NoError(t, users.RecordFailedLogin(ctx, user.ID, models.MaxFailedLoginAttempts, lockoutEnd))
	}
	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxFailedLoginAttempts-1, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockoutEnd)
	assert.Equal(t, user.Version, stored.Version)

	require.NoError(t, users.RecordFailedLogin(ctx, user.ID, models.MaxFailedLoginAttempts, lockoutEnd))
	stored, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LockoutEnd)
	assert.True(t, stored.LockoutEnd.Equal(lockoutEnd))
	assert.True(t, stored.IsLockedOut(time.Now()))
}

func TestUserRepository_SetPaymentCustomerIDKeepsFirst(t *testing.T) {
	db := database.OpenTest(t)
	ctx := context.Background()
	users := repositories.NewGORMUserRepository(db)

	user := &models.User{Email: "payer@example.com", PasswordHash: "x", Role: models.RoleCustomer, IsActive: true}
	require.NoError(t, users.Create(ctx, user))

	require.NoError(t, users.SetPaymentCustomerID(ctx, user.ID, "cus_first"))
	require.NoError(t, users.SetPaymentCustomerID(ctx, user.ID, "cus_second"))

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentCustomerID)
	assert.Equal(t, "cus_first", *stored.PaymentCustomerID)
}

func TestOrderRepository_HasPendingPayment(t *testing.T) {
	db := database.OpenTest(t)
	ctx := context.Background()
	orders := repositories.NewGORMOrderRepository(db)
	orderID := uuid.New()

	pending, err := orders.HasPendingPayment(ctx, orderID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, pending)

	payment := &models.Payment{
		OrderID: orderID, UserID: uuid.New(), Amount: decimal.RequireFromString("10"),
		Currency: "USD", Method: "card", Provider: "stripe", Status: models.PaymentStatusPending,
	}
	require.NoError(t, orders.CreatePayment(ctx, payment))

	pending, err = orders.HasPendingPayment(ctx, orderID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, pending)

	// Abandoned attempts older than the window do not block a retry
	pending, err = orders.HasPendingPayment(ctx, orderID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, payment.MarkFailed("card_declined", "declined", time.Now()))
	require.NoError(t, orders.UpdatePayment(ctx, payment))
	pending, err = orders.HasPendingPayment(ctx, orderID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, pending)
}
