package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"shopilent/internal/metrics"
	"shopilent/pkg/logger"
)

// RequestContext copies the request id set by the requestid middleware into
// the user context so service logs carry it.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok && id != "" {
			c.SetUserContext(logger.WithRequestID(c.UserContext(), id))
		}
		return c.Next()
	}
}

// Metrics records the count and latency of every request by route pattern.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		if route == "" || route == "/" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Method(), route, status, time.Since(start))
		return err
	}
}
