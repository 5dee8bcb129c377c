package request

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRequestID(t *testing.T) {
	svc := NewBaseService()
	app := fiber.New()
	app.Use(svc.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(svc.GetRequestID(c)) })

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "  abc  ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "abc", string(body))
	assert.Equal(t, "abc", resp.Header.Get("X-Request-ID"))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(body), "req_"))
	assert.Equal(t, string(body), resp.Header.Get("X-Request-ID"))
}

func TestSanitizeRequestID(t *testing.T) {
	svc := NewBaseService()
	assert.Len(t, svc.sanitizeRequestID(strings.Repeat("a", 300)), maxRequestIDLength)
}

func TestParseKeyExpiry(t *testing.T) {
	svc := NewBaseService()

	got, err := svc.ParseKeyExpiry("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = svc.ParseKeyExpiry("never")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = svc.ParseKeyExpiry("2026-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	_, err = svc.ParseKeyExpiry("tomorrow")
	assert.Error(t, err)
}
