package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository persists the ledger in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo over an open connection pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = "id, user_id, date, sign_in_time, sign_out_time, status, created_at, updated_at"

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Date, &rec.SignIn, &rec.SignOut, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// GetRecord returns the user's record for a civil date, nil when none exists.
func (r *PostgresRepository) GetRecord(ctx context.Context, userID, date string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE user_id = $1 AND date = $2
	`, userID, date)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// GetRecordByID returns a record by identifier, nil when none exists.
func (r *PostgresRepository) GetRecordByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records WHERE id = $1
	`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertRecord writes a new record.
func (r *PostgresRepository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = DeriveStatus(rec.SignIn, rec.SignOut)
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, user_id, date, sign_in_time, sign_out_time, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, rec.ID, rec.UserID, rec.Date, rec.SignIn, rec.SignOut, rec.Status)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// SetRecordSignIn fills the sign-in time when none is set. The WHERE clause
// is the concurrency guard: the second writer updates zero rows.
func (r *PostgresRepository) SetRecordSignIn(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET sign_in_time = $2, status = 'partial', updated_at = NOW()
		WHERE id = $1 AND sign_in_time IS NULL
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetRecordSignOut fills the sign-out time when none is set, same guard.
func (r *PostgresRepository) SetRecordSignOut(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET sign_out_time = $2, status = 'present', updated_at = NOW()
		WHERE id = $1 AND sign_in_time IS NOT NULL AND sign_out_time IS NULL
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateRecordTimes replaces both timestamps and the cached status.
func (r *PostgresRepository) UpdateRecordTimes(ctx context.Context, id string, signIn, signOut *time.Time, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET sign_in_time = $2, sign_out_time = $3, status = $4, updated_at = NOW()
		WHERE id = $1
	`, id, signIn, signOut, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListRecords returns records with basic filters, newest first.
func (r *PostgresRepository) ListRecords(ctx context.Context, f ListFilter) ([]Record, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = $"+itoa(len(args)+1))
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = $"+itoa(len(args)+1))
		args = append(args, f.Status)
	}
	if f.From != "" {
		clauses = append(clauses, "date >= $"+itoa(len(args)+1))
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "date <= $"+itoa(len(args)+1))
		args = append(args, f.To)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// SignInDates returns the dates in [from, to] carrying a non-null sign-in.
func (r *PostgresRepository) SignInDates(ctx context.Context, userID, from, to string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date FROM attendance_records
		WHERE user_id = $1 AND date BETWEEN $2 AND $3 AND sign_in_time IS NOT NULL
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	dates := make(map[string]struct{})
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[d] = struct{}{}
	}
	return dates, rows.Err()
}

// CountSignedIn counts users with a sign-in on the given date.
func (r *PostgresRepository) CountSignedIn(ctx context.Context, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records
		WHERE date = $1 AND sign_in_time IS NOT NULL
	`, date).Scan(&n)
	return n, err
}

const requestColumns = "id, user_id, date, sign_in_time, sign_out_time, status, decided_at, created_at"

func scanRequest(row interface{ Scan(...any) error }) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.UserID, &req.Date, &req.SignIn, &req.SignOut, &req.Status, &req.DecidedAt, &req.CreatedAt)
	return req, err
}

// GetRequest returns a request by identifier, nil when none exists.
func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (*Request, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM pending_sign_ins WHERE id = $1
	`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// OpenRequest returns the user's pending request for a date, nil when none.
func (r *PostgresRepository) OpenRequest(ctx context.Context, userID, date string) (*Request, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM pending_sign_ins
		WHERE user_id = $1 AND date = $2 AND status = 'pending'
	`, userID, date)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// InsertRequest writes a new pending request. The partial unique index on
// (user_id, date) WHERE status = 'pending' backs the one-open-request rule.
func (r *PostgresRepository) InsertRequest(ctx context.Context, req Request) (Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = RequestPending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO pending_sign_ins (id, user_id, date, sign_in_time, sign_out_time, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, req.ID, req.UserID, req.Date, req.SignIn, req.SignOut, req.Status)
	if err := row.Scan(&req.CreatedAt); err != nil {
		return Request{}, err
	}
	return req, nil
}

// SetRequestSignOut attaches a sign-out time to an open request.
func (r *PostgresRepository) SetRequestSignOut(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_sign_ins
		SET sign_out_time = $2
		WHERE id = $1 AND status = 'pending' AND sign_out_time IS NULL
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ApproveRequest flips a pending request to approved and upserts the
// ledger record in one transaction. Returns applied=false when the
// request was already decided.
func (r *PostgresRepository) ApproveRequest(ctx context.Context, id string) (*Record, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE pending_sign_ins
		SET status = 'approved', decided_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING user_id, date, sign_in_time, sign_out_time
	`, id)
	var (
		userID, date string
		signIn       time.Time
		signOut      *time.Time
	)
	if err := row.Scan(&userID, &date, &signIn, &signOut); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	status := DeriveStatus(&signIn, signOut)
	recRow := tx.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, user_id, date, sign_in_time, sign_out_time, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, date) DO UPDATE SET
			sign_in_time = EXCLUDED.sign_in_time,
			sign_out_time = EXCLUDED.sign_out_time,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING `+recordColumns+`
	`, uuid.NewString(), userID, date, signIn, signOut, status)
	rec, err := scanRecord(recRow)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// RejectRequest flips a pending request to rejected.
func (r *PostgresRepository) RejectRequest(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_sign_ins
		SET status = 'rejected', decided_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListRequests returns requests by status, newest first.
func (r *PostgresRepository) ListRequests(ctx context.Context, status RequestStatus, limit, offset int) ([]Request, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM pending_sign_ins
		WHERE status = $1
		ORDER BY sign_in_time DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
