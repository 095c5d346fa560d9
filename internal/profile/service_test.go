package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository())
}

func TestSignUpAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	p, err := svc.SignUp(ctx, SignUpInput{
		Name:     "Jane Doe",
		Email:    "  Jane@Example.com ",
		Password: "s3cret-password",
		InternID: "INT-001",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleIntern, p.Role)
	assert.Equal(t, "jane@example.com", p.Email, "email is normalized")
	require.NotNil(t, p.InternID)
	assert.Equal(t, "INT-001", *p.InternID)

	got, err := svc.Login(ctx, "jane@example.com", "s3cret-password")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Login(ctx, "jane@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Name: "A", Email: "a@example.com", Password: "password-1"})
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, SignUpInput{Name: "B", Email: "A@Example.com", Password: "password-2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSetupAdminOnlyOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	p, err := svc.SetupAdmin(ctx, SignUpInput{Name: "Admin", Email: "admin@example.com", Password: "admin-password"})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, p.Role)

	_, err = svc.SetupAdmin(ctx, SignUpInput{Name: "Second", Email: "second@example.com", Password: "another-password"})
	assert.ErrorIs(t, err, ErrAdminExists)
}

func TestRefreshTokenRotation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	p, err := svc.SignUp(ctx, SignUpInput{Name: "A", Email: "a@example.com", Password: "password-1"})
	require.NoError(t, err)

	require.NoError(t, svc.StoreRefreshToken(ctx, p.ID, "tok-1", now.Add(time.Hour)))

	got, err := svc.RotateRefreshToken(ctx, "tok-1", now)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	// A rotated token is revoked and cannot be replayed.
	_, err = svc.RotateRefreshToken(ctx, "tok-1", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Expired tokens are refused.
	require.NoError(t, svc.StoreRefreshToken(ctx, p.ID, "tok-2", now.Add(-time.Minute)))
	_, err = svc.RotateRefreshToken(ctx, "tok-2", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Unknown tokens are refused.
	_, err = svc.RotateRefreshToken(ctx, "tok-3", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestCountInterns(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SetupAdmin(ctx, SignUpInput{Name: "Admin", Email: "admin@example.com", Password: "admin-password"})
	require.NoError(t, err)
	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := svc.SignUp(ctx, SignUpInput{Name: email, Email: email, Password: "password-1"})
		require.NoError(t, err)
	}

	n, err := svc.CountInterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
