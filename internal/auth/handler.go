package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/apperr"
	"github.com/scout-app/scout-api/internal/user"
	"github.com/scout-app/scout-api/internal/validation"
)

// Handler exposes auth endpoints for register/login/refresh/logout.
type Handler struct {
	svc      Service
	validate *validation.Validator
}

func NewHandler(svc Service, validate *validation.Validator) *Handler {
	return &Handler{svc: svc, validate: validate}
}

// Length rules for usernames and passwords are applied by user.Manager.
type registerRequest struct {
	Username *string `json:"username" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password *string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password *string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         user.Summary `json:"user"`
}

type accessResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Register creates an account and returns a session.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Unprocessable(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}
	session, err := h.svc.Register(c.UserContext(), user.Registration{Username: *req.Username, Email: req.Email, Password: *req.Password})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) || errors.Is(err, user.ErrUsernameTaken) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return err
	}
	return c.Status(http.StatusCreated).JSON(toSessionResponse(session))
}

// Login validates credentials and returns a session.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Unprocessable(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}
	session, err := h.svc.Login(c.UserContext(), user.Credentials{Email: req.Email, Password: *req.Password})
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(toSessionResponse(session))
}

// Refresh issues a new access token. The refresh token may arrive in the
// JSON body or as the refresh_token query parameter.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.Unprocessable(err)
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Query("refresh_token")
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}
	token, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(accessResponse{AccessToken: token.Token, TokenType: token.TokenType, ExpiresIn: token.ExpiresIn})
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		User:         s.User,
	}
}
