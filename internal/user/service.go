package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/scout-app/scout-api/internal/validation"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned when another account already uses the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Service is the profile surface used by the HTTP handler.
type Service interface {
	Me(ctx context.Context, userID string) (Profile, error)
	UpdateMe(ctx context.Context, userID string, update Update) (Profile, error)
	PublicProfile(ctx context.Context, id string) (Profile, error)
}

// ReportCounter counts the reports a user authored.
type ReportCounter interface {
	CountByAuthor(ctx context.Context, authorID string) (int, error)
}

// Manager manages the account lifecycle.
type Manager struct {
	repo     Repository
	reports  ReportCounter
	validate *validation.Validator
	now      func() time.Time
}

// NewManager creates a user manager. reports may be nil, in which case
// profiles report zero authored reports.
func NewManager(repo Repository, reports ReportCounter) *Manager {
	return &Manager{repo: repo, reports: reports, validate: validation.New(), now: time.Now}
}

// Register creates a user with a bcrypt password hash.
func (m *Manager) Register(ctx context.Context, reg Registration) (User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = normalizeEmail(reg.Email)
	if err := m.validate.Struct(reg); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := m.now().UTC()
	user := User{
		ID:           uuid.NewString(),
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies an email/password pair.
func (m *Manager) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := m.repo.FindByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Me returns the full profile of the authenticated user.
func (m *Manager) Me(ctx context.Context, userID string) (Profile, error) {
	user, err := m.repo.FindByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return m.profile(ctx, user, true)
}

// UpdateMe applies the non-nil fields of update.
func (m *Manager) UpdateMe(ctx context.Context, userID string, update Update) (Profile, error) {
	if update.Username != nil {
		name := strings.TrimSpace(*update.Username)
		update.Username = &name
	}
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		update.Email = &email
	}
	if err := m.validate.Struct(update); err != nil {
		return Profile{}, err
	}

	user, err := m.repo.FindByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return Profile{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = m.now().UTC()

	if err := m.repo.Update(ctx, user); err != nil {
		return Profile{}, err
	}
	return m.profile(ctx, user, true)
}

// PublicProfile returns a profile without the email address.
func (m *Manager) PublicProfile(ctx context.Context, id string) (Profile, error) {
	user, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return m.profile(ctx, user, false)
}

func (m *Manager) profile(ctx context.Context, user User, withEmail bool) (Profile, error) {
	p := Profile{ID: user.ID, Username: user.Username, CreatedAt: user.CreatedAt}
	if withEmail {
		p.Email = user.Email
	}
	if m.reports != nil {
		count, err := m.reports.CountByAuthor(ctx, user.ID)
		if err != nil {
			return Profile{}, fmt.Errorf("count reports: %w", err)
		}
		p.ReportCount = count
	}
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
