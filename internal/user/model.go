package user

import "time"

// User represents a registered rider.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the slice of a user embedded in auth sessions.
type Summary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Summary returns the public identity fields of u.
func (u User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Profile is a user enriched with report statistics.
type Profile struct {
	ID          string
	Username    string
	Email       string
	CreatedAt   time.Time
	ReportCount int
}

// Registration captures sign-up data. Username is checked after trimming.
type Registration struct {
	Username string `json:"username" validate:"min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=8,max=128"`
}

// Credentials captures login data.
type Credentials struct {
	Email    string
	Password string
}

// Update holds optional profile changes; nil fields are left untouched.
type Update struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128"`
}
