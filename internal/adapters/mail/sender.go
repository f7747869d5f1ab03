package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"marketpulse/internal/adapters/config"
	"marketpulse/internal/domain/alert"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Sender delivers alert emails over SMTP with implicit TLS
type Sender struct {
	cfg config.SMTPConfig
	log *logger.Logger
}

var _ alert.MailSender = (*Sender)(nil)

// NewSender creates the SMTP sender, or an error when the transport is
// not configured
func NewSender(cfg config.SMTPConfig) (*Sender, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "smtp transport requires SMTP_HOST, SMTP_USER and SMTP_PASS")
	}
	return &Sender{
		cfg: cfg,
		log: logger.Get().With("component", "mail"),
	}, nil
}

// Send delivers one plain-text message. The SMTP dialog is synchronous;
// callers bound it with the context deadline.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return errors.ErrNoRecipient
	}

	from := s.cfg.FromAddress()
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body,
	)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	dialer := tls.Dialer{Config: &tls.Config{ServerName: s.cfg.Host}}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "dial smtp server")
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return errors.Wrap(err, "create smtp client")
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return errors.Wrap(err, "smtp auth")
	}

	if err := client.Mail(from); err != nil {
		return errors.Wrap(err, "set sender")
	}
	if err := client.Rcpt(to); err != nil {
		return errors.Wrap(err, "set recipient")
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "open data writer")
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return errors.Wrap(err, "write message")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "close data writer")
	}

	s.log.Debugw("alert email sent", "to", to, "subject", subject)
	return client.Quit()
}
