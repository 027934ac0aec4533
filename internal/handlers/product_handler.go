package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"shopilent/internal/middleware"
	"shopilent/internal/models"
	"shopilent/internal/services"
)

// ProductHandler handles HTTP requests for products and their variants.
type ProductHandler struct {
	products *services.ProductService
	variants *services.VariantService
}

func NewProductHandler(products *services.ProductService, variants *services.VariantService) *ProductHandler {
	return &ProductHandler{products: products, variants: variants}
}

// RegisterRoutes registers the catalog routes. Reads are public, writes
// require a staff role.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	staff := middleware.StaffOnly()

	products := router.Group("/products")
	products.Get("/", h.HandleListProducts)
	products.Get("/slug/:slug", h.HandleGetProductBySlug)
	products.Get("/:id", h.HandleGetProduct)
	products.Get("/:id/variants", h.HandleListVariants)
	products.Post("/", auth, staff, h.HandleCreateProduct)
	products.Put("/:id", auth, staff, h.HandleUpdateProduct)
	products.Put("/:id/status", auth, staff, h.HandleUpdateProductStatus)
	products.Delete("/:id", auth, staff, h.HandleDeleteProduct)
	products.Post("/:id/variants", auth, staff, h.HandleCreateVariant)

	variants := router.Group("/variants")
	variants.Get("/:id", h.HandleGetVariant)
	variants.Put("/:id", auth, staff, h.HandleUpdateVariant)
	variants.Put("/:id/stock", auth, staff, h.HandleUpdateStock)
	variants.Put("/:id/status", auth, staff, h.HandleUpdateVariantStatus)
	variants.Delete("/:id", auth, staff, h.HandleDeleteVariant)
}

type productListQuery struct {
	CategoryID string `query:"category_id"`
	Search     string `query:"search"`
	// Active defaults to true; staff pass active=false to see everything.
	Active   *bool  `query:"active"`
	SortBy   string `query:"sort_by"`
	SortDesc bool   `query:"sort_desc"`
}

func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	page, err := pageRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	var q productListQuery
	if err := c.QueryParser(&q); err != nil {
		return respondError(c, models.NewValidationError("query", err.Error()))
	}

	filter := models.ProductFilter{
		PageRequest: page,
		Search:      q.Search,
		ActiveOnly:  q.Active == nil || *q.Active,
		SortBy:      q.SortBy,
		SortDesc:    q.SortDesc,
	}
	if q.CategoryID != "" {
		id, err := uuid.Parse(q.CategoryID)
		if err != nil {
			return respondError(c, models.NewValidationError("category_id", "must be a valid UUID"))
		}
		filter.CategoryID = &id
	}

	products, err := h.products.ListProducts(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	product, err := h.products.GetProductByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleGetProductBySlug(c *fiber.Ctx) error {
	product, err := h.products.GetProductBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var cmd services.ProductCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	product, err := h.products.CreateProduct(c.UserContext(), cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.ProductCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	product, err := h.products.UpdateProduct(c.UserContext(), id, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

type statusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
	Version  *int  `json:"version"`
}

func (h *ProductHandler) HandleUpdateProductStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	product, err := h.products.UpdateStatus(c.UserContext(), id, *req.IsActive, req.Version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.products.DeleteProduct(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return deleted(c, "Product", id)
}

func (h *ProductHandler) HandleListVariants(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	variants, err := h.variants.ListByProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(variants)
}

func (h *ProductHandler) HandleCreateVariant(c *fiber.Ctx) error {
	productID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.VariantCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	variant, err := h.variants.Create(c.UserContext(), productID, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(variant)
}

func (h *ProductHandler) HandleGetVariant(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	variant, err := h.variants.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(variant)
}

func (h *ProductHandler) HandleUpdateVariant(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var cmd services.VariantCommand
	if err := parseBody(c, &cmd); err != nil {
		return respondError(c, err)
	}
	variant, err := h.variants.Update(c.UserContext(), id, cmd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(variant)
}

type stockRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
	Version  *int `json:"version"`
}

// HandleUpdateStock sets the absolute stock level of a variant.
func (h *ProductHandler) HandleUpdateStock(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req stockRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	variant, err := h.variants.UpdateStock(c.UserContext(), id, *req.Quantity, req.Version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(variant)
}

func (h *ProductHandler) HandleUpdateVariantStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	variant, err := h.variants.UpdateStatus(c.UserContext(), id, *req.IsActive, req.Version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(variant)
}

func (h *ProductHandler) HandleDeleteVariant(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.variants.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return deleted(c, "Variant", id)
}
