package user

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/apperr"
)

// Handler exposes user profile endpoints.
type Handler struct {
	service Service
}

// NewHandler constructs a user HTTP handler. Profile edits are validated by
// the service, since the stub accepts any well-formed body.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type updateRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type profileResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ReportCount int       `json:"report_count"`
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	profile, err := h.service.Me(c.UserContext(), uid)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(profile))
}

// UpdateMe changes the authenticated user's username, email or password.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	var req updateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.Unprocessable(err)
		}
	}
	uid, _ := c.Locals("user_id").(string)
	profile, err := h.service.UpdateMe(c.UserContext(), uid, Update{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(profile))
}

// Get returns the public profile of any user.
func (h *Handler) Get(c *fiber.Ctx) error {
	profile, err := h.service.PublicProfile(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(profile))
}

func toResponse(p Profile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		CreatedAt:   p.CreatedAt,
		ReportCount: p.ReportCount,
	}
}

// mapError converts domain errors into HTTP errors; anything else is left
// for the application error handler.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return err
	}
}
