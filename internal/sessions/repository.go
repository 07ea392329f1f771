package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtrack/backend/internal/models"
)

const sessionColumns = `id, user_id, song_id, started_at, last_event_at, ended_at,
	is_active, auto_ended, events, aggregated_data, prediction, logout_email_sent,
	created_at, updated_at`

// Repository handles listening_sessions persistence. State transitions are
// expressed as conditional updates so they stay atomic under the concurrent
// sweeper: there is no read-then-write anywhere in this file.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateActive inserts a new active session. A partial unique index on
// (user_id) WHERE is_active enforces the single-active-session invariant;
// violating it returns ErrActiveExists so the caller can re-read the winner.
func (r *Repository) CreateActive(ctx context.Context, userID uuid.UUID, songID *uuid.UUID, now time.Time) (*models.Session, error) {
	const q = `INSERT INTO listening_sessions (id, user_id, song_id, started_at, last_event_at, is_active, events, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $3, TRUE, '[]'::jsonb, $3, $3)
		RETURNING ` + sessionColumns
	row := r.pool.QueryRow(ctx, q, userID, songID, now)
	s, err := scanSession(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrActiveExists
		}
		return nil, err
	}
	return s, nil
}

// GetByID returns a session by id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM listening_sessions WHERE id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetActiveByUser returns the user's active session, or nil when none exists.
func (r *Repository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM listening_sessions WHERE user_id = $1 AND is_active`
	s, err := scanSession(r.pool.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Heartbeat advances last_event_at for the caller's active session.
// GREATEST keeps the timestamp monotonic if a stale heartbeat ever lands.
func (r *Repository) Heartbeat(ctx context.Context, sessionID, userID uuid.UUID, now time.Time) error {
	const q = `UPDATE listening_sessions
		SET last_event_at = GREATEST(last_event_at, $3), updated_at = $3
		WHERE id = $1 AND user_id = $2 AND is_active`
	tag, err := r.pool.Exec(ctx, q, sessionID, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinalizeParams carries everything written at the end-transition.
type FinalizeParams struct {
	SessionID      uuid.UUID
	EndedAt        time.Time
	AutoEnded      bool
	Events         []models.SessionEvent
	AggregatedData models.AggregatedData
	Prediction     *models.Prediction
}

// Finalize performs the atomic end-transition: set is_active = false only if
// currently true. A concurrent explicit end and sweeper pass cannot both
// succeed; the loser gets ErrSessionEnded.
func (r *Repository) Finalize(ctx context.Context, p FinalizeParams) (*models.Session, error) {
	events := p.Events
	if events == nil {
		events = []models.SessionEvent{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}
	dataJSON, err := json.Marshal(p.AggregatedData)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregated data: %w", err)
	}
	predJSON, err := json.Marshal(p.Prediction)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction: %w", err)
	}

	const q = `UPDATE listening_sessions
		SET is_active = FALSE, ended_at = $2, auto_ended = $3,
			events = $4, aggregated_data = $5, prediction = $6,
			last_event_at = GREATEST(last_event_at, $2), updated_at = $2
		WHERE id = $1 AND is_active
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, q, p.SessionID, p.EndedAt, p.AutoEnded, eventsJSON, dataJSON, predJSON))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionEnded
	}
	return s, err
}

// ListStaleActive returns active sessions whose last_event_at is older than
// the cutoff, oldest first.
func (r *Repository) ListStaleActive(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM listening_sessions
		WHERE is_active AND last_event_at < $1 ORDER BY last_event_at`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetLatestEnded returns the most recent ended session with a prediction for
// the user, or nil when none exists.
func (r *Repository) GetLatestEnded(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM listening_sessions
		WHERE user_id = $1 AND NOT is_active AND prediction IS NOT NULL
		ORDER BY ended_at DESC LIMIT 1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListByUser returns the user's sessions, newest first, capped at 50.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM listening_sessions
		WHERE user_id = $1 ORDER BY started_at DESC LIMIT 50`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// ClaimLogoutEmail flips logout_email_sent to true and reports whether this
// call won the flag. Repeated logouts for the same session claim it at most
// once.
func (r *Repository) ClaimLogoutEmail(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	const q = `UPDATE listening_sessions SET logout_email_sent = TRUE
		WHERE id = $1 AND NOT logout_email_sent`
	tag, err := r.pool.Exec(ctx, q, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountSummary returns total and active session counts for admin analytics.
func (r *Repository) CountSummary(ctx context.Context) (total, active int64, err error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM listening_sessions`
	err = r.pool.QueryRow(ctx, q).Scan(&total, &active)
	return total, active, err
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var eventsJSON, dataJSON, predJSON []byte
	err := row.Scan(&s.ID, &s.UserID, &s.SongID, &s.StartedAt, &s.LastEventAt, &s.EndedAt,
		&s.IsActive, &s.AutoEnded, &eventsJSON, &dataJSON, &predJSON, &s.LogoutEmailSent,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(eventsJSON) > 0 {
		if err := json.Unmarshal(eventsJSON, &s.Events); err != nil {
			return nil, fmt.Errorf("unmarshal events: %w", err)
		}
	}
	if len(dataJSON) > 0 {
		s.AggregatedData = &models.AggregatedData{}
		if err := json.Unmarshal(dataJSON, s.AggregatedData); err != nil {
			return nil, fmt.Errorf("unmarshal aggregated data: %w", err)
		}
	}
	if len(predJSON) > 0 {
		s.Prediction = &models.Prediction{}
		if err := json.Unmarshal(predJSON, s.Prediction); err != nil {
			return nil, fmt.Errorf("unmarshal prediction: %w", err)
		}
	}
	return &s, nil
}
