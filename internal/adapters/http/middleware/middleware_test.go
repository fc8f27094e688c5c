package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"microfin-loans/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorsConfig_ByMode(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://branch.example.ph")

	dev := corsConfig(&config.Config{AppMode: "dev"})
	assert.Equal(t, "*", dev.AllowOrigins)
	assert.False(t, dev.AllowCredentials)

	prod := corsConfig(&config.Config{AppMode: "prod"})
	assert.Equal(t, "https://branch.example.ph", prod.AllowOrigins)
	assert.True(t, prod.AllowCredentials)
	assert.Equal(t, allowedMethods, prod.AllowMethods)
}

func TestStrictRateLimiter_BlocksAfterBudget(t *testing.T) {
	app := fiber.New()
	app.Post("/penalties/run", StrictRateLimiter(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusAccepted)
	})

	for i := 0; i < strictRequestsPerMinute; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/penalties/run", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode, "request %d", i)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/penalties/run", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestSetup_HealthIsNotRateLimited(t *testing.T) {
	app := fiber.New()
	Setup(app, &config.Config{AppMode: "dev"})
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	for i := 0; i < apiRequestsPerMinute+5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i)
	}
}
