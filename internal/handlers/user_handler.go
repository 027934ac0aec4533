package handlers

import (
	"github.com/gofiber/fiber/v2"

	"shopilent/internal/middleware"
	"shopilent/internal/models"
	"shopilent/internal/services"
)

// UserHandler serves the current user's profile and addresses, and user
// administration.
type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterRoutes registers the user routes. Every route requires auth.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	users := router.Group("/users", auth)
	users.Get("/me", h.HandleGetMe)
	users.Put("/me", h.HandleUpdateMe)
	users.Get("/me/addresses", h.HandleListAddresses)
	users.Post("/me/addresses", h.HandleAddAddress)
	users.Delete("/me/addresses/:id", h.HandleDeleteAddress)

	admin := middleware.AdminOnly()
	users.Get("/", admin, h.HandleListUsers)
	users.Get("/:id", admin, h.HandleGetUser)
	users.Put("/:id/status", admin, h.HandleUpdateStatus)
	users.Put("/:id/role", admin, h.HandleUpdateRole)
}

func (h *UserHandler) HandleGetMe(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	user, err := h.service.GetUser(c.UserContext(), actor.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) HandleUpdateMe(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.UpdateProfileCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	user, err := h.service.UpdateProfile(c.UserContext(), actor.UserID, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	page, err := pageRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	users, err := h.service.ListUsers(c.UserContext(), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	user, err := h.service.GetUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

type userStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (h *UserHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req userStatusRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	user, err := h.service.UpdateStatus(c.UserContext(), actor, id, *req.IsActive)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

type userRoleRequest struct {
	Role models.Role `json:"role" validate:"required"`
}

func (h *UserHandler) HandleUpdateRole(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req userRoleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	user, err := h.service.UpdateRole(c.UserContext(), actor, id, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) HandleListAddresses(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	addresses, err := h.service.ListAddresses(c.UserContext(), actor.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(addresses)
}

func (h *UserHandler) HandleAddAddress(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.AddAddressCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	address, err := h.service.AddAddress(c.UserContext(), actor.UserID, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(address)
}

func (h *UserHandler) HandleDeleteAddress(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.service.DeleteAddress(c.UserContext(), actor.UserID, id); err != nil {
		return respondError(c, err)
	}
	return deleted(c, "Address", id)
}
