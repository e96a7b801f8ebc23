package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/user"
)

// UserIDKey is the fiber.Locals key holding the authenticated user's id.
const UserIDKey = "user_id"

// TokenVerifier resolves a bearer access token to the current user.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (user.User, error)
}

// RequireAuth rejects requests without a valid, unrevoked access token.
func RequireAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		u, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(http.StatusUnauthorized, "invalid or revoked token")
		}
		c.Locals(UserIDKey, u.ID)
		c.Locals("token_version", u.TokenVersion)
		return c.Next()
	}
}

// OptionalAuth sets the user id when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Next()
		}
		if u, err := verifier.Verify(c.UserContext(), token); err == nil {
			c.Locals(UserIDKey, u.ID)
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authz := c.Get(fiber.HeaderAuthorization)
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[len("Bearer "):])
	return token, token != ""
}
