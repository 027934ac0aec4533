// Package server assembles the Fiber application: middleware, health and
// metrics endpoints, and the versioned API routes.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopilent/internal/handlers"
	"shopilent/internal/metrics"
	"shopilent/internal/middleware"
	"shopilent/pkg/logger"
)

// Options configures the application shell around the services.
type Options struct {
	AppName string
	// AccessLog enables Fiber's request logger.
	AccessLog bool
	Metrics   *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Ping reports whether the database is reachable.
	Ping func(ctx context.Context) error
}

// New builds the Fiber app and registers every route.
func New(svc *Services, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContext())
	if opts.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	if opts.Metrics != nil {
		app.Use(middleware.Metrics(opts.Metrics))
	}

	app.Get("/health", healthHandler(opts.Ping))
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	auth := middleware.AuthRequired(svc.Auth)
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(svc.Auth).RegisterRoutes(apiV1, auth)
	handlers.NewUserHandler(svc.Users).RegisterRoutes(apiV1, auth)
	handlers.NewAttributeHandler(svc.Attributes).RegisterRoutes(apiV1, auth)
	handlers.NewCategoryHandler(svc.Categories).RegisterRoutes(apiV1, auth)
	handlers.NewProductHandler(svc.Products, svc.Variants).RegisterRoutes(apiV1, auth)
	handlers.NewOrderHandler(svc.Orders, svc.Payments).RegisterRoutes(apiV1, auth)
	handlers.NewWebhookHandler(svc.Payments).RegisterRoutes(apiV1)

	return app
}

func healthHandler(ping func(ctx context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, database := fiber.StatusOK, "connected"
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.Warn(ctx, "Health check failed", "error", err)
				status, database = fiber.StatusServiceUnavailable, "unreachable"
			}
		}
		health := "healthy"
		if status != fiber.StatusOK {
			health = "unhealthy"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":   health,
			"time":     time.Now().Format(time.RFC3339),
			"database": database,
		})
	}
}

// errorHandler renders errors that escape the handlers, such as unknown
// routes and recovered panics.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code == fiber.StatusInternalServerError {
		logger.Error(c.UserContext(), "Unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(code).JSON(fiber.Map{"message": "Internal server error"})
	}
	return c.Status(code).JSON(fiber.Map{
		"message": statusMessage(code),
		"error":   err.Error(),
	})
}

func statusMessage(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "Route not found"
	case fiber.StatusMethodNotAllowed:
		return "Method not allowed"
	default:
		return "Request failed"
	}
}
