package models

import "time"

// EmailConfig is the SMTP configuration stored in the database. Values set
// here override environment configuration so admins can rotate credentials
// without a restart.
type EmailConfig struct {
	SMTPHost     string    `json:"smtp_host"`
	SMTPPort     int       `json:"smtp_port"`
	SMTPUser     string    `json:"smtp_user"`
	SMTPPassword string    `json:"-"`
	SMTPFrom     string    `json:"smtp_from"`
	Enabled      bool      `json:"enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}
