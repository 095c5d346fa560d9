package profile

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SignUpInput carries the fields collected at registration.
type SignUpInput struct {
	Name        string
	Email       string
	Password    string
	InternID    string
	PhoneNumber string
}

// Service owns account creation and credential checks.
type Service struct {
	repo Repository
}

// NewService creates a profile service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) create(ctx context.Context, in SignUpInput, role Role) (Profile, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, _, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return Profile{}, err
	}
	if existing != nil {
		return Profile{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if in.InternID != "" {
		v := in.InternID
		p.InternID = &v
	}
	if in.PhoneNumber != "" {
		v := in.PhoneNumber
		p.PhoneNumber = &v
	}
	if err := s.repo.Create(ctx, p, string(hash)); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SignUp registers an intern account.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Profile, error) {
	return s.create(ctx, in, RoleIntern)
}

// SetupAdmin registers the first admin account. Refused once any admin
// exists; later admins are created by an existing one.
func (s *Service) SetupAdmin(ctx context.Context, in SignUpInput) (Profile, error) {
	n, err := s.repo.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return Profile{}, err
	}
	if n > 0 {
		return Profile{}, ErrAdminExists
	}
	return s.create(ctx, in, RoleAdmin)
}

// Login verifies the password and returns the profile.
func (s *Service) Login(ctx context.Context, email, password string) (Profile, error) {
	p, hash, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Profile{}, err
	}
	if p == nil {
		return Profile{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Profile{}, ErrInvalidCredentials
	}
	return *p, nil
}

// GetByID returns a profile or ErrProfileNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if p == nil {
		return Profile{}, ErrProfileNotFound
	}
	return *p, nil
}

// List returns profiles, optionally filtered by role.
func (s *Service) List(ctx context.Context, role Role) ([]Profile, error) {
	return s.repo.List(ctx, role)
}

// CountInterns reports the number of intern accounts.
func (s *Service) CountInterns(ctx context.Context) (int, error) {
	return s.repo.CountByRole(ctx, RoleIntern)
}

// StoreRefreshToken persists a freshly issued refresh token.
func (s *Service) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return s.repo.SaveRefreshToken(ctx, userID, token, expiresAt)
}

// RotateRefreshToken validates a stored refresh token, revokes it, and
// returns the owning user so the caller can issue a new pair.
func (s *Service) RotateRefreshToken(ctx context.Context, token string, now time.Time) (Profile, error) {
	stored, err := s.repo.GetRefreshToken(ctx, token)
	if err != nil {
		return Profile{}, err
	}
	if stored == nil || stored.Revoked || now.After(stored.ExpiresAt) {
		return Profile{}, ErrTokenInvalid
	}
	if err := s.repo.RevokeRefreshToken(ctx, token); err != nil {
		return Profile{}, err
	}
	return s.GetByID(ctx, stored.UserID)
}

// RevokeRefreshToken invalidates a refresh token at logout.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.repo.RevokeRefreshToken(ctx, token)
}
