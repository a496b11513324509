// Package mail delivers verification and password-reset messages. The core
// pipeline depends only on the Sender interface; delivery failures surface as
// typed mail errors classified by the command executor.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"

	"github.com/io7m-com/idstore-sub007/internal/errs"
)

// Sender delivers operational mail to a single recipient.
type Sender interface {
	// SendVerification mails an email add/remove confirmation token.
	SendVerification(ctx context.Context, to, token, operation string) error

	// SendPasswordReset mails a password reset token.
	SendPasswordReset(ctx context.Context, to, token string) error
}

// SMTP is a Sender over plain SMTP.
type SMTP struct {
	addr string
	from string
}

// NewSMTP creates an SMTP sender for the given host and port.
func NewSMTP(host string, port int, from string) *SMTP {
	return &SMTP{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
}

func (s *SMTP) SendVerification(_ context.Context, to, token, operation string) error {
	subject := "Confirm email change"
	body := fmt.Sprintf(
		"A request was made to change the email addresses on your account (%s).\r\n"+
			"Confirmation token: %s\r\n"+
			"If you did not make this request, deny it with the same token.\r\n",
		operation, token)
	return s.send(to, subject, body)
}

func (s *SMTP) SendPasswordReset(_ context.Context, to, token string) error {
	subject := "Password reset"
	body := fmt.Sprintf(
		"A password reset was requested for your account.\r\n"+
			"Reset token: %s\r\n"+
			"If you did not make this request, ignore this message.\r\n",
		token)
	return s.send(to, subject, body)
}

func (s *SMTP) send(to, subject, body string) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.from, to, subject, body))

	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, msg); err != nil {
		return &errs.MailError{Address: to, Cause: err}
	}
	return nil
}

// Log is a Sender that only logs, for development environments without an
// SMTP relay. Tokens are logged at debug level only.
type Log struct{}

func (Log) SendVerification(_ context.Context, to, token, operation string) error {
	log.Info().Str("to", to).Str("operation", operation).Msg("Mail (log only): verification")
	log.Debug().Str("token", token).Msg("Verification token")
	return nil
}

func (Log) SendPasswordReset(_ context.Context, to, token string) error {
	log.Info().Str("to", to).Msg("Mail (log only): password reset")
	log.Debug().Str("token", token).Msg("Reset token")
	return nil
}
