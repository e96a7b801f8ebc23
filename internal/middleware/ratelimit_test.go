package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scout-app/scout-api/internal/metrics"
)

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(6, 2)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"), "burst exhausted")
	assert.True(t, rl.Allow("bob"), "keys are independent")

	now = now.Add(10 * time.Second)
	assert.True(t, rl.Allow("alice"), "one token refills every ten seconds")
}

func TestRateLimiterSweepsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("alice")
	now = now.Add(limiterIdleTTL + time.Minute)
	rl.Allow("bob")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	_, alice := rl.visitors["alice"]
	assert.False(t, alice)
	assert.Len(t, rl.visitors, 1)
}

func TestRateLimiterHandler(t *testing.T) {
	app := fiber.New()
	app.Post("/reports", NewRateLimiter(1, 1).Handler(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/reports", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/reports", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestLoginRateLimitByEmail(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2, metrics.New()), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	login := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"`+email+`","password":"x"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, login("rider@example.com"))
	assert.Equal(t, http.StatusOK, login("RIDER@example.com"))
	assert.Equal(t, http.StatusTooManyRequests, login("rider@example.com"))
	assert.Equal(t, http.StatusOK, login("other@example.com"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, login("rider@example.com"))
}

func TestLoginRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(nil, 1, nil), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
