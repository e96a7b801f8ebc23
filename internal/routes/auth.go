package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/auth"
	"github.com/scout-app/scout-api/internal/middleware"
)

// RegisterAuthRoutes wires authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, b Backend, d Deps) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	if d.Cache != nil && b.Verifier != nil {
		group.Post("/login", middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttemptsPerMinute, d.Metrics), h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", b.requireAuth(), h.Logout)
}
