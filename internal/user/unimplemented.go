package user

import (
	"context"

	"github.com/scout-app/scout-api/internal/apperr"
)

// Unimplemented answers every profile call with a not-implemented error.
type Unimplemented struct{}

func (Unimplemented) Me(context.Context, string) (Profile, error) {
	return Profile{}, apperr.NotImplemented("Get user")
}

func (Unimplemented) UpdateMe(context.Context, string, Update) (Profile, error) {
	return Profile{}, apperr.NotImplemented("Update user")
}

func (Unimplemented) PublicProfile(context.Context, string) (Profile, error) {
	return Profile{}, apperr.NotImplemented("Get user by ID")
}
