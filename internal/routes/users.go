package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/user"
)

// RegisterUserRoutes wires profile endpoints. /me must precede /:id.
func RegisterUserRoutes(r fiber.Router, h *user.Handler, b Backend) {
	group := r.Group("/users")
	group.Get("/me", b.requireAuth(), h.Me)
	group.Put("/me", b.requireAuth(), h.UpdateMe)
	group.Get("/:id", h.Get)
}
