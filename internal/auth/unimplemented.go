package auth

import (
	"context"

	"github.com/scout-app/scout-api/internal/apperr"
	"github.com/scout-app/scout-api/internal/user"
)

// Unimplemented answers every auth call with a not-implemented error.
type Unimplemented struct{}

func (Unimplemented) Register(context.Context, user.Registration) (Session, error) {
	return Session{}, apperr.NotImplemented("Registration")
}

func (Unimplemented) Login(context.Context, user.Credentials) (Session, error) {
	return Session{}, apperr.NotImplemented("Login")
}

func (Unimplemented) Refresh(context.Context, string) (AccessToken, error) {
	return AccessToken{}, apperr.NotImplemented("Token refresh")
}

func (Unimplemented) Logout(context.Context, string) error {
	return apperr.NotImplemented("Logout")
}
