// Package notify ships generated reports by email outside the request path.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned when sender credentials or the recipient are missing
var ErrNotConfigured = errors.New("email delivery is not configured")

// Job describes one report to deliver
type Job struct {
	Path  string
	Month string
	Year  int
}

// SMTPConfig holds the mail transport settings
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Recipient string
}

// Configured reports whether enough settings are present to send mail
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Recipient != ""
}

// Mailer sends report emails over SMTP with STARTTLS
type Mailer struct {
	cfg     SMTPConfig
	timeout time.Duration
}

// NewMailer creates a Mailer
func NewMailer(cfg SMTPConfig) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, timeout: 30 * time.Second}
}

// Send emails the report as an attachment
func (m *Mailer) Send(ctx context.Context, job Job) error {
	if !m.cfg.Configured() {
		return ErrNotConfigured
	}

	msg, err := buildMessage(m.cfg, job)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(m.timeout),
	)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func buildMessage(cfg SMTPConfig, job Job) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(cfg.Username); err != nil {
		return nil, fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(cfg.Recipient); err != nil {
		return nil, fmt.Errorf("setting recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("Reporte de Sueldos Procesados - %s %d", job.Month, job.Year))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Se completó un procesamiento de recibos de sueldo.\n\n"+
			"Se adjunta el reporte de Excel de %s %d.\n\n"+
			"- Este es un mensaje automático -\n",
		job.Month, job.Year))
	msg.AttachFile(job.Path)
	return msg, nil
}
