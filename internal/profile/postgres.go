package profile

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepository persists profiles in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo over an open connection pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = "id, name, email, intern_id, role, phone_number, created_at"

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.InternID, &p.Role, &p.PhoneNumber, &p.CreatedAt)
	return p, err
}

// Create inserts the profile with its credential in a single row write.
func (r *PostgresRepository) Create(ctx context.Context, p Profile, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, email, password_hash, intern_id, role, phone_number, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.Name, p.Email, passwordHash, p.InternID, p.Role, p.PhoneNumber, p.CreatedAt)
	return err
}

// GetByEmail returns the profile and its password hash, nil when none exists.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Profile, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`, password_hash
		FROM profiles WHERE email = $1
	`, email)
	var (
		p    Profile
		hash string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.InternID, &p.Role, &p.PhoneNumber, &p.CreatedAt, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &p, hash, nil
}

// GetByID returns a profile by identifier, nil when none exists.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles WHERE id = $1
	`, id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// List returns profiles ordered by name, optionally filtered by role.
func (r *PostgresRepository) List(ctx context.Context, role Role) ([]Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	args := []any{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, role)
	}
	query += ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// CountByRole counts profiles holding a role.
func (r *PostgresRepository) CountByRole(ctx context.Context, role Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE role = $1`, role).Scan(&n)
	return n, err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *PostgresRepository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	return err
}

// GetRefreshToken returns a stored token, nil when unknown.
func (r *PostgresRepository) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, revoked
		FROM refresh_tokens WHERE token = $1
	`, token)
	var rt RefreshToken
	if err := row.Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.Revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token revoked.
func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
