package handlers

import (
	"github.com/gofiber/fiber/v2"

	"shopilent/internal/middleware"
	"shopilent/internal/services"
)

// AttributeHandler handles HTTP requests for product attributes.
type AttributeHandler struct {
	service *services.AttributeService
}

func NewAttributeHandler(service *services.AttributeService) *AttributeHandler {
	return &AttributeHandler{service: service}
}

// RegisterRoutes registers public reads and staff-only writes.
func (h *AttributeHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	staff := middleware.StaffOnly()
	attributes := router.Group("/attributes")
	attributes.Get("/", h.HandleList)
	attributes.Get("/:id", h.HandleGet)
	attributes.Post("/", auth, staff, h.HandleCreate)
	attributes.Put("/:id", auth, staff, h.HandleUpdate)
	attributes.Delete("/:id", auth, staff, h.HandleDelete)
}

func (h *AttributeHandler) HandleList(c *fiber.Ctx) error {
	page, err := pageRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	attributes, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(attributes)
}

func (h *AttributeHandler) HandleGet(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	attribute, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(attribute)
}

func (h *AttributeHandler) HandleCreate(c *fiber.Ctx) error {
	var cmd services.CreateAttributeCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	attribute, err := h.service.Create(c.UserContext(), cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(attribute)
}

func (h *AttributeHandler) HandleUpdate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.UpdateAttributeCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	attribute, err := h.service.Update(c.UserContext(), id, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(attribute)
}

func (h *AttributeHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return deleted(c, "Attribute", id)
}
