package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/scout-app/scout-api/internal/user"
)

const (
	issuer      = "scout-api"
	audience    = "scout-app"
	kindAccess  = "access"
	kindRefresh = "refresh"

	// TokenType is the OAuth-style token type returned to clients.
	TokenType = "bearer"
)

// ErrInvalidToken covers malformed, expired, mis-signed and revoked tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the JWT claims carried by access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Version int    `json:"ver"`
	Kind    string `json:"kind"`
}

// Pair is an access/refresh token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Tokens signs and verifies HS256 tokens. Access and refresh tokens use
// separate secrets so one cannot stand in for the other.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokens builds a token signer.
func NewTokens(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Issue creates a fresh pair bound to the user's current token version.
func (t *Tokens) Issue(u user.User) (Pair, error) {
	access, err := t.sign(u.ID, u.TokenVersion, kindAccess, t.accessSecret, t.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := t.sign(u.ID, u.TokenVersion, kindRefresh, t.refreshSecret, t.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(t.accessTTL.Seconds())}, nil
}

// Access creates only an access token.
func (t *Tokens) Access(userID string, version int) (string, int64, error) {
	token, err := t.sign(userID, version, kindAccess, t.accessSecret, t.accessTTL)
	if err != nil {
		return "", 0, err
	}
	return token, int64(t.accessTTL.Seconds()), nil
}

// ParseAccess verifies an access token.
func (t *Tokens) ParseAccess(token string) (Claims, error) {
	return t.parse(token, kindAccess, t.accessSecret)
}

// ParseRefresh verifies a refresh token.
func (t *Tokens) ParseRefresh(token string) (Claims, error) {
	return t.parse(token, kindRefresh, t.refreshSecret)
}

func (t *Tokens) sign(userID string, version int, kind string, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Version: version,
		Kind:    kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (t *Tokens) parse(token, kind string, secret []byte) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Kind != kind || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
