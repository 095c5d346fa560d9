package profile

import (
	"context"
	"errors"
	"time"
)

// Role is a profile's access level.
type Role string

const (
	RoleIntern Role = "intern"
	RoleAdmin  Role = "admin"
	RoleHR     Role = "hr"
)

// Profile is a registered user. The ledger references it by ID only.
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	InternID    *string   `json:"intern_id"`
	Role        Role      `json:"role"`
	PhoneNumber *string   `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// RefreshToken is a stored refresh credential used for rotation checks.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
}

var (
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAdminExists        = errors.New("an admin account has already been set up")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrTokenInvalid       = errors.New("refresh token is invalid or expired")
)

// Repository is the storage boundary for profiles and refresh tokens.
type Repository interface {
	// Create inserts the credential and profile as one write, so a profile
	// is readable the instant signup returns.
	Create(ctx context.Context, p Profile, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*Profile, string, error)
	GetByID(ctx context.Context, id string) (*Profile, error)
	List(ctx context.Context, role Role) ([]Profile, error)
	CountByRole(ctx context.Context, role Role) (int, error)

	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}
