package handlers

import (
	"github.com/gofiber/fiber/v2"

	"shopilent/internal/middleware"
	"shopilent/internal/services"
)

// CategoryHandler handles HTTP requests for the category tree.
type CategoryHandler struct {
	service *services.CategoryService
}

func NewCategoryHandler(service *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{service: service}
}

func (h *CategoryHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	staff := middleware.StaffOnly()
	categories := router.Group("/categories")
	categories.Get("/", h.HandleList)
	categories.Get("/slug/:slug", h.HandleGetBySlug)
	categories.Get("/:id", h.HandleGet)
	categories.Get("/:id/children", h.HandleGetChildren)
	categories.Post("/", auth, staff, h.HandleCreate)
	categories.Put("/:id", auth, staff, h.HandleUpdate)
	categories.Delete("/:id", auth, staff, h.HandleDelete)
}

func (h *CategoryHandler) HandleList(c *fiber.Ctx) error {
	page, err := pageRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	categories, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(categories)
}

func (h *CategoryHandler) HandleGet(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	category, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(category)
}

func (h *CategoryHandler) HandleGetBySlug(c *fiber.Ctx) error {
	category, err := h.service.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(category)
}

func (h *CategoryHandler) HandleGetChildren(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	children, err := h.service.GetChildren(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(children)
}

func (h *CategoryHandler) HandleCreate(c *fiber.Ctx) error {
	var cmd services.CreateCategoryCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	category, err := h.service.Create(c.UserContext(), cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *CategoryHandler) HandleUpdate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.UpdateCategoryCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	category, err := h.service.Update(c.UserContext(), id, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(category)
}

func (h *CategoryHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return deleted(c, "Category", id)
}
