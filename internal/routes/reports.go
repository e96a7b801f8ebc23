package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/middleware"
	"github.com/scout-app/scout-api/internal/report"
)

// RegisterReportRoutes wires report endpoints. Creation honours
// Idempotency-Key when Redis is available and is rate limited per user;
// replays are answered before the limiter so retries cost nothing.
func RegisterReportRoutes(r fiber.Router, h *report.Handler, b Backend, d Deps) {
	group := r.Group("/reports")
	group.Get("", b.optionalAuth(), h.List)

	create := []fiber.Handler{b.requireAuth()}
	if b.Verifier != nil {
		limiter := middleware.NewRateLimiter(d.Cfg.ReportRatePerMinute, d.Cfg.ReportRateBurst)
		create = append(create, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger), limiter.Handler())
	}
	group.Post("", append(create, h.Create)...)

	group.Get("/:id", b.optionalAuth(), h.Get)
	group.Put("/:id", b.requireAuth(), h.Update)
	group.Put("/:id/verify", b.requireAuth(), h.Verify)
	group.Delete("/:id", b.requireAuth(), h.Delete)
}
