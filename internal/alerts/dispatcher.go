// Package alerts turns predictions into email notifications. Dispatch is
// fire-and-forget relative to the session end-transition: every failure here
// is logged and absorbed, never surfaced to session state.
package alerts

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/models"
	"github.com/mtrack/backend/pkg/queue"
)

// Enqueuer hands email jobs to the background worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// UserDirectory resolves the recipient address for a user.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Dispatcher evaluates prediction thresholds and enqueues notifications.
type Dispatcher struct {
	queue  Enqueuer
	users  UserDirectory
	logger *zap.Logger
}

// NewDispatcher creates an alert dispatcher.
func NewDispatcher(q Enqueuer, users UserDirectory, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: q, users: users, logger: logger}
}

// Dispatch enqueues a stress alert if stress is High and a depression alert
// if depression is High; both may fire for the same session. Never returns
// an error: notification is best-effort.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, sessionID uuid.UUID, p *models.Prediction) {
	if p == nil {
		return
	}
	if p.StressLevel != models.LevelHigh && p.DepressionLevel != models.LevelHigh {
		return
	}

	user, err := d.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		d.logger.Warn("alert recipient lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}

	if p.StressLevel == models.LevelHigh {
		d.enqueue(ctx, user, sessionID, models.EmailTypeStressAlert, p)
	}
	if p.DepressionLevel == models.LevelHigh {
		d.enqueue(ctx, user, sessionID, models.EmailTypeDepressionAlert, p)
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, user *models.User, sessionID uuid.UUID, emailType string, p *models.Prediction) {
	subject, html, text := BuildAlertEmail(emailType, p)
	sid := sessionID
	err := d.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      emailType,
		UserID:         user.ID,
		SessionID:      &sid,
		RecipientEmail: user.Email,
		Subject:        subject,
		BodyHTML:       html,
		BodyText:       text,
	})
	if err != nil {
		d.logger.Error("alert enqueue failed",
			zap.String("email_type", emailType),
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return
	}
	d.logger.Info("alert queued",
		zap.String("email_type", emailType),
		zap.String("session_id", sessionID.String()))
}
