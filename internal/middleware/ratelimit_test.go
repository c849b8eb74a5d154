package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fableweaver/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiterRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// limitedApp mounts the named route budget behind a fake auth step that
// stores the X-User header as the caller's id.
func limitedApp(rdb *redis.Client, name string) *fiber.App {
	app := fiber.New()
	app.Post("/turn", func(c *fiber.Ctx) error {
		if uid := c.Get("X-User"); uid != "" {
			c.Locals("userID", uid)
		}
		return c.Next()
	}, Limit(rdb, name), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func post(t *testing.T, app *fiber.App, user string) (int, models.ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/turn", nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body models.ErrorResponse
	if resp.StatusCode >= http.StatusBadRequest {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestCheckRateLimit(t *testing.T) {
	for _, env := range []string{"test", "development", "stress"} {
		t.Run(env+" bypass", func(t *testing.T) {
			t.Setenv("APP_ENV", env)
			allowed, err := CheckRateLimit(context.Background(), nil, "generate_chapter", "user:1", 1, time.Minute)
			assert.NoError(t, err)
			assert.True(t, allowed)
		})
	}

	t.Run("nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		allowed, err := CheckRateLimit(context.Background(), nil, "generate_chapter", "user:1", 1, time.Minute)
		assert.Error(t, err)
		assert.False(t, allowed)
	})

	t.Run("counter expires with its window", func(t *testing.T) {
		mr, rdb := setupLimiterRedis(t)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:10.0.0.1", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, time.Minute, mr.TTL("rl:login:ip:10.0.0.1"))

		mr.FastForward(time.Minute)
		allowed, err = CheckRateLimit(ctx, rdb, "login", "ip:10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestGroupChatTurnLimitPerUser(t *testing.T) {
	mr, rdb := setupLimiterRedis(t)
	app := limitedApp(rdb, "group_chat_turn")
	budget := RouteLimits["group_chat_turn"]

	for i := 0; i < budget.Max; i++ {
		status, _ := post(t, app, "7")
		require.Equal(t, http.StatusCreated, status, "turn %d", i+1)
	}

	status, body := post(t, app, "7")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, models.CodeRateLimited, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Error)

	// another reader has their own bucket
	status, _ = post(t, app, "8")
	assert.Equal(t, http.StatusCreated, status)

	assert.True(t, mr.Exists("rl:group_chat_turn:user:7"))
	assert.Equal(t, budget.Window, mr.TTL("rl:group_chat_turn:user:7"))
}

func TestGenerateChapterLimitWindow(t *testing.T) {
	mr, rdb := setupLimiterRedis(t)
	app := limitedApp(rdb, "generate_chapter")
	budget := RouteLimits["generate_chapter"]
	require.Equal(t, 5, budget.Max)

	for i := 0; i < budget.Max; i++ {
		status, _ := post(t, app, "3")
		require.Equal(t, http.StatusCreated, status)
	}
	status, body := post(t, app, "3")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, models.CodeRateLimited, body.Code)

	mr.FastForward(budget.Window)
	status, _ = post(t, app, "3")
	assert.Equal(t, http.StatusCreated, status)
}

func TestGenerationLimitsFailClosed(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	for _, name := range []string{"generate_chapter", "generate_character", "group_chat_turn"} {
		assert.Equal(t, FailClosed, RouteLimits[name].Policy, name)
	}

	status, body := post(t, limitedApp(nil, "generate_chapter"), "3")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, models.CodeUnavailable, body.Code)
	assert.Equal(t, "rate limit unavailable", body.Error)

	// ordinary routes keep serving without the counter store
	status, _ = post(t, limitedApp(nil, "create_comment"), "3")
	assert.Equal(t, http.StatusCreated, status)
}

func TestLimitRejectsUnknownName(t *testing.T) {
	assert.Panics(t, func() { Limit(nil, "create_post") })
}

func TestGlobalRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(GlobalRateLimit(2, time.Minute))
	app.All("/api/novels", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/novels", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/novels", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.CodeRateLimited, body.Code)

	preflight, err := app.Test(httptest.NewRequest(http.MethodOptions, "/api/novels", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, preflight.StatusCode)
	_ = preflight.Body.Close()
}
