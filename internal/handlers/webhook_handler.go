package handlers

import (
	"github.com/gofiber/fiber/v2"

	"shopilent/internal/services"
	"shopilent/pkg/logger"
)

// WebhookHandler receives payment provider notifications.
type WebhookHandler struct {
	payments *services.PaymentService
}

func NewWebhookHandler(payments *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/webhooks/stripe", h.HandleStripe)
}

// HandleStripe verifies the Stripe-Signature header against the raw body
// before applying the event.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing Stripe-Signature header",
		})
	}

	if err := h.payments.HandleWebhook(c.UserContext(), payload, signature); err != nil {
		logger.Warn(c.UserContext(), "Webhook rejected", "error", err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
