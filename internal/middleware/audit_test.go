package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scout-app/scout-api/internal/apperr"
	"github.com/scout-app/scout-api/internal/logging"
)

func TestRequestIDPropagation(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestIDHeader).(string)
		return c.SendString(id)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "trace-123", resp.Header.Get(requestIDHeader))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)
}

func TestAuditLogsStatusFromError(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(nil)})
	app.Use(RequestID(), Audit(logging.NewWithWriter(&buf, "info")))
	app.Get("/reports", func(c *fiber.Ctx) error {
		return apperr.NotImplemented("Get reports")
	})

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set(requestIDHeader, "trace-456")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.EqualValues(t, http.StatusNotImplemented, entry["status"])
	assert.Equal(t, "trace-456", entry["request_id"])
}
