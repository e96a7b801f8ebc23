package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/apperr"
	"github.com/scout-app/scout-api/internal/metrics"
)

// Metrics records request counts and latency labelled by route pattern.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.Status(err)
		}
		route := c.Route().Path
		if status == fiber.StatusNotFound && route == "/" && c.Path() != "/" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Method(), route, status, time.Since(start))
		return err
	}
}
