// Package notify delivers customer-facing notifications: push messages about
// order progress and transactional email for staff password resets.
package notify

import (
	"fmt"
	"log"
	"strconv"

	"github.com/lavandera/api/internal/config"
	"gopkg.in/gomail.v2"
)

// Pusher sends a push notification to a customer device. Implementations are
// best-effort: delivery failures are logged, never propagated.
type Pusher interface {
	Push(deviceToken, title, body string) error
}

// LogPusher writes notifications to the process log. It stands in until a
// real push provider is wired; the dispatcher only depends on the interface.
type LogPusher struct{}

func (LogPusher) Push(deviceToken, title, body string) error {
	log.Printf("push to %s: %s - %s", deviceToken, title, body)
	return nil
}

// Mailer sends transactional email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	base   string
}

// NewMailer builds a Mailer from config. Returns nil when SMTP is not
// configured; callers treat a nil Mailer as "email disabled".
func NewMailer(cfg *config.Config) *Mailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		port = 587
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.MailFrom,
		base:   cfg.AppBaseURL,
	}
}

// SendPasswordReset emails a reset link valid until the token expires.
func (m *Mailer) SendPasswordReset(to, name, token string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Reset your password")
	msg.SetBody("text/html", fmt.Sprintf(
		"<p>Hi %s,</p><p>Use the link below to reset your password. It expires in one hour.</p><p><a href=%q>Reset password</a></p>",
		name, fmt.Sprintf("%s/reset-password?token=%s", m.base, token)))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}
