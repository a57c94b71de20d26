package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp() *fiber.App {
	log := zap.NewNop()
	app := fiber.New()
	app.Use(GatewayAuth("secret", log))
	user := app.Group("/", UserContext(log))
	user.Get("/me", func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })
	admin := user.Group("/admin", RequireAdmin(log))
	admin.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	return app
}

func do(t *testing.T, app *fiber.App, path string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestGatewayAuth(t *testing.T) {
	app := newTestApp()
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/me", nil))
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/me", map[string]string{"Authorization": "Bearer nope"}))
	assert.Equal(t, fiber.StatusOK, do(t, app, "/me", map[string]string{"Authorization": "Bearer secret", "X-User-ID": "u1"}))
	assert.Equal(t, fiber.StatusOK, do(t, app, "/me", map[string]string{"Authorization": "secret", "X-User-ID": "u1"}))
}

func TestUserContextRequiresUser(t *testing.T) {
	app := newTestApp()
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/me", map[string]string{"Authorization": "Bearer secret"}))
}

func TestRequireAdmin(t *testing.T) {
	app := newTestApp()
	base := map[string]string{"Authorization": "Bearer secret", "X-User-ID": "u1"}
	assert.Equal(t, fiber.StatusForbidden, do(t, app, "/admin/ping", base))

	base["X-User-Roles"] = "user, Admin"
	assert.Equal(t, fiber.StatusOK, do(t, app, "/admin/ping", base))
}
