package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopilent/internal/middleware"
	"shopilent/internal/models"
	"shopilent/internal/services"
)

type fakeValidator struct {
	claims map[string]*services.Claims
}

func (f fakeValidator) ValidateToken(token string) (*services.Claims, error) {
	if c, ok := f.claims[token]; ok {
		return c, nil
	}
	return nil, errors.New("token is expired")
}

func newApp(t *testing.T) (*fiber.App, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	tokens := fakeValidator{claims: map[string]*services.Claims{
		"customer-token": {UserID: userID, Email: "c@example.com", Role: models.RoleCustomer},
		"manager-token":  {UserID: userID, Email: "m@example.com", Role: models.RoleManager},
	}}

	app := fiber.New()
	auth := middleware.AuthRequired(tokens)
	app.Get("/me", auth, func(c *fiber.Ctx) error {
		actor, ok := middleware.CurrentActor(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"user_id": actor.UserID, "role": actor.Role, "email": c.Locals("email")})
	})
	app.Get("/staff", auth, middleware.StaffOnly(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/admin", auth, middleware.AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app, userID
}

func TestAuthRequired_RejectsMissingOrMalformedHeader(t *testing.T) {
	app, _ := newApp(t)

	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"no token":     "Bearer",
		"bad token":    "Bearer forged",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestAuthRequired_StoresClaims(t *testing.T) {
	app, userID := newApp(t)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer customer-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, userID.String(), body["user_id"])
	assert.Equal(t, "customer", body["role"])
	assert.Equal(t, "c@example.com", body["email"])
}

func TestRequireRoles(t *testing.T) {
	app, _ := newApp(t)

	tests := []struct {
		path   string
		token  string
		status int
	}{
		{"/staff", "customer-token", fiber.StatusForbidden},
		{"/staff", "manager-token", fiber.StatusOK},
		{"/admin", "manager-token", fiber.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		req.Header.Set("Authorization", "Bearer "+tt.token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode, "%s with %s", tt.path, tt.token)
	}
}
