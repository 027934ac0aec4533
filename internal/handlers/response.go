package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"shopilent/internal/middleware"
	"shopilent/internal/models"
	"shopilent/internal/services"
	"shopilent/pkg/logger"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// parseBody decodes and validates the request body into dst.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return validateStruct(dst)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	verr := &models.ValidationError{}
	for _, e := range validationErrors {
		// Namespace is Command.items[0].quantity; drop the struct name
		field := e.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		verr.Add(field, fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
	}
	return verr
}

// respondError maps a service error onto the HTTP status and body used by
// every endpoint.
func respondError(c *fiber.Ctx, err error) error {
	ctx := c.UserContext()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   fe.Message,
		})
	}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.Fields,
		})
	}

	var pe *models.PaymentError
	if errors.As(err, &pe) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"message": "Payment failed",
			"error":   pe.Message,
			"code":    pe.Code,
		})
	}

	status, message := fiber.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		status, message = fiber.StatusUnauthorized, "Authentication failed"
	case errors.Is(err, models.ErrForbidden):
		status, message = fiber.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, models.ErrNotFound):
		status, message = fiber.StatusNotFound, "Resource not found"
	case errors.Is(err, models.ErrAlreadyExists):
		status, message = fiber.StatusConflict, "Resource already exists"
	case errors.Is(err, models.ErrConcurrencyConflict):
		status, message = fiber.StatusConflict, "Resource was modified by another request"
	case errors.Is(err, models.ErrInvalidState):
		status, message = fiber.StatusConflict, "Operation not allowed in the current state"
	}

	if status == fiber.StatusInternalServerError {
		logger.Error(ctx, "Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{"message": message})
	}
	logger.Debug(ctx, "Request rejected", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

// paramID parses a uuid route parameter.
func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, models.NewValidationError(name, "must be a valid UUID")
	}
	return id, nil
}

func pageRequest(c *fiber.Ctx) (models.PageRequest, error) {
	var page models.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return page, models.NewValidationError("page", "page and page_size must be integers")
	}
	return page.Normalize(), nil
}

// actorOf returns the caller set by the auth middleware.
func actorOf(c *fiber.Ctx) (services.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return services.Actor{}, fmt.Errorf("no authenticated user: %w", models.ErrUnauthorized)
	}
	return actor, nil
}

func deleted(c *fiber.Ctx, entity string, id uuid.UUID) error {
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%s %s deleted successfully", entity, id),
	})
}
