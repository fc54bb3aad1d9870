package service

import (
	"context"
	"fmt"

	mail "github.com/go-mail/mail/v2"
	"github.com/rs/zerolog/log"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, link string) error
}

// SMTPMailer sends mail through an SMTP relay with mandatory STARTTLS.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) SendVerification(_ context.Context, to, name, link string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetAddressHeader("To", to, name)
	msg.SetHeader("Subject", "Verify your email address")
	msg.SetBody("text/plain", fmt.Sprintf("Hi %s,\n\nConfirm your email address to finish creating your account:\n\n%s\n\nIf you did not sign up, ignore this message.\n", name, link))

	d := mail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

// LogMailer writes verification links to the log instead of sending them. Used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) SendVerification(_ context.Context, to, _, link string) error {
	log.Info().Str("to", to).Str("link", link).Msg("verification mail (smtp not configured)")
	return nil
}
