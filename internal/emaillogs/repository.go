package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtrack/backend/internal/models"
)

// Repository handles email_logs persistence. The worker records every
// delivery attempt here so admins can audit alert and summary emails.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending log row for a delivery attempt and returns its id.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, emailType, recipient, subject string) (uuid.UUID, error) {
	const q = `INSERT INTO email_logs (user_id, session_id, email_type, recipient_email, subject, status)
		VALUES ($1, $2, $3, $4, $5, 'pending') RETURNING id`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, userID, sessionID, emailType, recipient, subject).Scan(&id)
	return id, err
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = 'sent', sent_at = $2, error_message = NULL WHERE id = $1`,
		id, sentAt)
	return err
}

// MarkFailed records a failed delivery with the error message.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = 'failed', error_message = $2 WHERE id = $1`,
		id, errMsg)
	return err
}

// List returns email logs, newest first, optionally filtered by type and
// status, capped at limit (default 100).
func (r *Repository) List(ctx context.Context, emailType, status string, limit int) ([]*models.EmailLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, user_id, session_id, email_type, recipient_email,
		COALESCE(subject,''), status, sent_at, COALESCE(error_message,''), created_at
		FROM email_logs
		WHERE ($1 = '' OR email_type = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, q, emailType, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.UserID, &el.SessionID, &el.EmailType, &el.RecipientEmail,
			&el.Subject, &el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}

// CountByStatus returns delivery counts grouped by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM email_logs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
