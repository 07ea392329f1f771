// Package worker consumes email jobs from the Redis queue and delivers them
// over SMTP, recording every attempt in the email audit log.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/emailconfig"
	"github.com/mtrack/backend/internal/emaillogs"
	"github.com/mtrack/backend/pkg/mailer"
	"github.com/mtrack/backend/pkg/queue"
)

// EmailProcessor processes email jobs: resolve SMTP settings, send, log.
type EmailProcessor struct {
	queue     *queue.Queue
	mailer    *mailer.Mailer
	logs      *emaillogs.Repository
	config    *emailconfig.Repository
	envConfig mailer.Settings
	logger    *zap.Logger
}

// NewEmailProcessor creates an email processor. envConfig is the SMTP
// configuration from the environment; a database row, when present and
// enabled, overrides it per send.
func NewEmailProcessor(q *queue.Queue, m *mailer.Mailer, logs *emaillogs.Repository,
	cfg *emailconfig.Repository, envConfig mailer.Settings, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, mailer: m, logs: logs, config: cfg, envConfig: envConfig, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	logID, err := p.logs.Create(ctx, payload.UserID, payload.SessionID,
		payload.EmailType, payload.RecipientEmail, payload.Subject)
	if err != nil {
		p.logger.Error("create email log failed", zap.Error(err))
		// Delivery proceeds; the audit row is best-effort.
	}

	settings := p.resolveSettings(ctx)
	sendErr := p.mailer.Send(settings, payload.RecipientEmail, payload.Subject, payload.BodyHTML, payload.BodyText)

	if logID != uuid.Nil {
		if sendErr != nil {
			if err := p.logs.MarkFailed(ctx, logID, sendErr.Error()); err != nil {
				p.logger.Warn("mark email failed", zap.Error(err))
			}
		} else {
			if err := p.logs.MarkSent(ctx, logID, time.Now()); err != nil {
				p.logger.Warn("mark email sent", zap.Error(err))
			}
		}
	}

	if sendErr != nil {
		return fmt.Errorf("send %s to %s: %w", payload.EmailType, payload.RecipientEmail, sendErr)
	}
	p.logger.Info("email sent",
		zap.String("email_type", payload.EmailType),
		zap.String("to", payload.RecipientEmail))
	return nil
}

// resolveSettings returns the database SMTP config when present and enabled,
// otherwise the environment config.
func (p *EmailProcessor) resolveSettings(ctx context.Context) mailer.Settings {
	if p.config != nil {
		if cfg, err := p.config.Get(ctx); err == nil && cfg != nil && cfg.Enabled {
			return mailer.Settings{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				User:     cfg.SMTPUser,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
				Enabled:  true,
			}
		}
	}
	return p.envConfig
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
