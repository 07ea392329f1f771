// Package mailer sends email over SMTP. Port 465 uses implicit TLS; other
// ports (587 in practice) upgrade the connection with STARTTLS.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Settings holds the SMTP parameters for one send. The worker resolves
// these per job so database-managed config changes apply without a restart.
type Settings struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Enabled  bool
}

// FromAddress returns the From header, defaulting to the SMTP user and
// adding a display name when the address has none.
func (s Settings) FromAddress() string {
	from := s.From
	if from == "" {
		from = s.User
	}
	if from != "" && !strings.Contains(from, "<") {
		from = fmt.Sprintf("M_Track <%s>", from)
	}
	return from
}

// Mailer sends messages with the settings supplied per call.
type Mailer struct {
	logger *zap.Logger
}

// New creates a Mailer.
func New(logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{logger: logger}
}

// Send delivers a multipart/alternative message to a single recipient.
// Returns an error when sending is disabled or credentials are missing so
// the caller can record the failure; it never panics on bad config.
func (m *Mailer) Send(settings Settings, to, subject, bodyHTML, bodyText string) error {
	if !settings.Enabled {
		m.logger.Info("email sending disabled, skipping", zap.String("to", to), zap.String("subject", subject))
		return fmt.Errorf("email sending disabled")
	}
	if settings.User == "" || settings.Password == "" {
		return fmt.Errorf("smtp credentials not configured")
	}

	msg := buildMessage(settings.FromAddress(), to, subject, bodyHTML, bodyText)
	addr := net.JoinHostPort(settings.Host, fmt.Sprintf("%d", settings.Port))
	auth := smtp.PlainAuth("", settings.User, settings.Password, settings.Host)

	var err error
	if settings.Port == 465 {
		err = m.sendImplicitTLS(addr, settings.Host, auth, settings.User, to, msg)
	} else {
		err = smtp.SendMail(addr, auth, settings.User, []string{to}, msg)
	}
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// sendImplicitTLS dials a TLS connection first (port 465), then speaks SMTP.
func (m *Mailer) sendImplicitTLS(addr, host string, auth smtp.Auth, from, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

const boundary = "mtrack-alt-boundary"

func buildMessage(from, to, subject, bodyHTML, bodyText string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	if bodyText != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(bodyText)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(bodyHTML)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
