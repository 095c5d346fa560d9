package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository persists notifications in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo over an open connection pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes a notification.
func (r *PostgresRepository) Insert(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, message, request_id, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, n.ID, n.UserID, n.Kind, n.Message, n.RequestID, n.Read, n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (r *PostgresRepository) list(ctx context.Context, where string, args []any) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, message, request_id, read, created_at
		FROM notifications `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &n.RequestID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// ListForUser returns the user's notifications, newest first.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, []any{userID, limit})
}

// ListForAdmins returns the admin broadcast feed, newest first.
func (r *PostgresRepository) ListForAdmins(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `WHERE user_id IS NULL ORDER BY created_at DESC LIMIT $1`, []any{limit})
}

// MarkRead flags a notification as seen.
func (r *PostgresRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}
