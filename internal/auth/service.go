package auth

import (
	"context"
	"errors"

	"github.com/scout-app/scout-api/internal/user"
)

// Session is returned by register and login.
type Session struct {
	Pair
	TokenType string
	User      user.Summary
}

// AccessToken is returned by refresh.
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresIn int64
}

// Service is the auth surface used by the HTTP handler.
type Service interface {
	Register(ctx context.Context, reg user.Registration) (Session, error)
	Login(ctx context.Context, creds user.Credentials) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (AccessToken, error)
	Logout(ctx context.Context, userID string) error
}

// Manager issues sessions for accounts managed by user.Manager.
type Manager struct {
	accounts *user.Manager
	repo     user.Repository
	tokens   *Tokens
}

// NewManager builds an auth manager.
func NewManager(accounts *user.Manager, repo user.Repository, tokens *Tokens) *Manager {
	return &Manager{accounts: accounts, repo: repo, tokens: tokens}
}

// Register creates the account and signs it in.
func (m *Manager) Register(ctx context.Context, reg user.Registration) (Session, error) {
	u, err := m.accounts.Register(ctx, reg)
	if err != nil {
		return Session{}, err
	}
	return m.session(u)
}

// Login validates credentials and issues tokens.
func (m *Manager) Login(ctx context.Context, creds user.Credentials) (Session, error) {
	u, err := m.accounts.Authenticate(ctx, creds)
	if err != nil {
		return Session{}, err
	}
	return m.session(u)
}

// Refresh verifies the refresh token and returns a new access token if the
// user still exists and has not logged out since it was issued.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (AccessToken, error) {
	claims, err := m.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return AccessToken{}, err
	}
	u, err := m.current(ctx, claims)
	if err != nil {
		return AccessToken{}, err
	}
	token, expiresIn, err := m.tokens.Access(u.ID, u.TokenVersion)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, TokenType: TokenType, ExpiresIn: expiresIn}, nil
}

// Logout increments the token version so older tokens become invalid.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	u, err := m.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return m.repo.UpdateTokenVersion(ctx, u.ID, u.TokenVersion+1)
}

// Verify resolves an access token to its user.
func (m *Manager) Verify(ctx context.Context, accessToken string) (user.User, error) {
	claims, err := m.tokens.ParseAccess(accessToken)
	if err != nil {
		return user.User{}, err
	}
	return m.current(ctx, claims)
}

func (m *Manager) current(ctx context.Context, claims Claims) (user.User, error) {
	u, err := m.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidToken
		}
		return user.User{}, err
	}
	if u.TokenVersion != claims.Version {
		return user.User{}, ErrInvalidToken
	}
	return u, nil
}

func (m *Manager) session(u user.User) (Session, error) {
	pair, err := m.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Pair: pair, TokenType: TokenType, User: u.Summary()}, nil
}
