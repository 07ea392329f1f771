package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types sent by the platform.
const (
	EmailTypeWelcome         = "welcome"
	EmailTypeStressAlert     = "stress_alert"
	EmailTypeDepressionAlert = "depression_alert"
	EmailTypeSessionSummary  = "session_summary"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records an email delivery attempt made by the worker.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	SessionID      *uuid.UUID `json:"session_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
