// Package emailconfig stores SMTP settings in the database. A single row
// holds the active configuration; when present and enabled it overrides the
// environment so credentials can be rotated without a restart.
package emailconfig

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtrack/backend/internal/models"
)

// Repository handles email_config persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email config repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the stored SMTP configuration, or nil when none is set.
func (r *Repository) Get(ctx context.Context) (*models.EmailConfig, error) {
	const q = `SELECT smtp_host, smtp_port, smtp_user, smtp_password, smtp_from, enabled, updated_at
		FROM email_config WHERE id = 1`
	var cfg models.EmailConfig
	err := r.pool.QueryRow(ctx, q).Scan(&cfg.SMTPHost, &cfg.SMTPPort, &cfg.SMTPUser,
		&cfg.SMTPPassword, &cfg.SMTPFrom, &cfg.Enabled, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert replaces the stored SMTP configuration.
func (r *Repository) Upsert(ctx context.Context, cfg models.EmailConfig) error {
	const q = `INSERT INTO email_config (id, smtp_host, smtp_port, smtp_user, smtp_password, smtp_from, enabled, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			smtp_host = EXCLUDED.smtp_host, smtp_port = EXCLUDED.smtp_port,
			smtp_user = EXCLUDED.smtp_user, smtp_password = EXCLUDED.smtp_password,
			smtp_from = EXCLUDED.smtp_from, enabled = EXCLUDED.enabled,
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser,
		cfg.SMTPPassword, cfg.SMTPFrom, cfg.Enabled)
	return err
}
