package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"shopilent/internal/models"
	"shopilent/internal/services"
	"shopilent/pkg/logger"
)

// TokenValidator checks an access token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			logger.Debug(c.UserContext(), "JWT validation failed", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		// Store claims in Fiber context for subsequent handlers
		c.Locals("user_id", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// RequireRoles lets the request through only for the given roles. It must
// run after AuthRequired.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(models.Role)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Insufficient permissions",
			"error":   models.ErrForbidden.Error(),
		})
	}
}

// StaffOnly admits managers and admins.
func StaffOnly() fiber.Handler {
	return RequireRoles(models.RoleManager, models.RoleAdmin)
}

// AdminOnly admits admins.
func AdminOnly() fiber.Handler {
	return RequireRoles(models.RoleAdmin)
}

// CurrentActor returns the authenticated caller stored by AuthRequired.
func CurrentActor(c *fiber.Ctx) (services.Actor, bool) {
	id, ok := c.Locals("user_id").(uuid.UUID)
	if !ok {
		return services.Actor{}, false
	}
	role, _ := c.Locals("role").(models.Role)
	return services.Actor{UserID: id, Role: role}, true
}
