package server

import (
	"fmt"

	"shopilent/internal/cache"
	"shopilent/internal/config"
	"shopilent/internal/database"
	"shopilent/internal/metrics"
	"shopilent/internal/outbox"
	"shopilent/internal/payments"
	"shopilent/internal/repositories"
	"shopilent/internal/services"
)

// Services groups the application services the HTTP layer depends on.
type Services struct {
	Auth       *services.AuthService
	Users      *services.UserService
	Attributes *services.AttributeService
	Categories *services.CategoryService
	Products   *services.ProductService
	Variants   *services.VariantService
	Orders     *services.OrderService
	Payments   *services.PaymentService
}

// NewServices builds the repositories and services over db. Every service
// records its domain events through the same outbox writer.
func NewServices(cfg *config.Config, db *database.DB, c cache.Cache, provider payments.Provider, m *metrics.Metrics) (*Services, error) {
	pricing, err := services.NewPricing(cfg.Orders)
	if err != nil {
		return nil, fmt.Errorf("invalid order pricing: %w", err)
	}

	users := repositories.NewGORMUserRepository(db)
	addresses := repositories.NewGORMAddressRepository(db)
	attributes := repositories.NewGORMAttributeRepository(db)
	categories := repositories.NewGORMCategoryRepository(db)
	products := repositories.NewGORMProductRepository(db)
	variants := repositories.NewGORMVariantRepository(db)
	orders := repositories.NewGORMOrderRepository(db)
	productReads := repositories.NewSQLProductReadRepository(db)
	orderReads := repositories.NewSQLOrderReadRepository(db)
	events := outbox.NewWriter(repositories.NewGORMOutboxRepository(db))

	ttl := cfg.Cache.TTL
	return &Services{
		Auth:       services.NewAuthService(users, db, events, cfg.JWT),
		Users:      services.NewUserService(users, addresses, db, events, c, ttl),
		Attributes: services.NewAttributeService(attributes, db, events, c, ttl),
		Categories: services.NewCategoryService(categories, db, events, c, ttl),
		Products:   services.NewProductService(products, productReads, categories, attributes, db, events, c, ttl, cfg.Orders.Currency),
		Variants:   services.NewVariantService(variants, products, attributes, db, events),
		Orders:     services.NewOrderService(orders, orderReads, products, variants, addresses, db, events, c, ttl, pricing),
		Payments:   services.NewPaymentService(orders, users, provider, db, events, m),
	}, nil
}
