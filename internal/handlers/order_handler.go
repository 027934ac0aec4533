package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"shopilent/internal/middleware"
	"shopilent/internal/models"
	"shopilent/internal/services"
	"shopilent/pkg/logger"
)

// OrderHandler handles HTTP requests for orders and their payments.
type OrderHandler struct {
	service  *services.OrderService
	payments *services.PaymentService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, payments *services.PaymentService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		payments: payments,
	}
}

// RegisterRoutes registers the order routes with the Fiber app. Every
// route requires auth.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	staff := middleware.StaffOnly()
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleGetMyOrders)
	orderRoutes.Get("/all", staff, h.HandleGetAllOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Put("/:id/status", staff, h.HandleUpdateOrderStatus)
	orderRoutes.Post("/:id/payments", h.HandleProcessPayment)
	orderRoutes.Post("/:id/refund", staff, h.HandleRefund)
}

// HandleCreateOrder places an order for the caller.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.CreateOrderCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}

	order, err := h.service.CreateOrder(c.UserContext(), actor.UserID, cmd)
	if err != nil {
		return respondError(c, err)
	}
	logger.Info(c.UserContext(), "Order created", "order_id", order.ID, "user_id", actor.UserID)
	return c.Status(fiber.StatusCreated).JSON(order)
}

func orderFilter(c *fiber.Ctx) (models.OrderFilter, error) {
	page, err := pageRequest(c)
	if err != nil {
		return models.OrderFilter{}, err
	}
	filter := models.OrderFilter{PageRequest: page}
	if status := c.Query("status"); status != "" {
		filter.Status = models.OrderStatus(status)
		if !filter.Status.Valid() {
			return filter, models.NewValidationError("status", "unknown order status")
		}
	}
	if userID := c.Query("user_id"); userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			return filter, models.NewValidationError("user_id", "must be a valid UUID")
		}
		filter.UserID = &id
	}
	return filter, nil
}

// HandleGetMyOrders lists the caller's own orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	filter, err := orderFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	orders, err := h.service.ListForUser(c.UserContext(), actor.UserID, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetAllOrders lists every order, optionally narrowed by user or status.
func (h *OrderHandler) HandleGetAllOrders(c *fiber.Ctx) error {
	filter, err := orderFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	orders, err := h.service.ListAll(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	order, err := h.service.GetOrder(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	order, err := h.service.CancelOrder(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus moves an order through its fulfilment states.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.UpdateOrderStatusCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	order, err := h.service.UpdateStatus(c.UserContext(), id, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleProcessPayment charges the order through the payment provider.
func (h *OrderHandler) HandleProcessPayment(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.ProcessPaymentCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}

	outcome, err := h.payments.ProcessPayment(c.UserContext(), actor, id, cmd)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if outcome.RequiresAction {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(outcome)
}

func (h *OrderHandler) HandleRefund(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.RefundCommand
	if len(c.Body()) > 0 {
		if err := parseBody(c, &cmd); err != nil {
			return respondError(c, err)
		}
	}
	order, err := h.payments.Refund(c.UserContext(), id, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}
