package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rotisserie/eris"
)

// Notifier delivers an alert message to a list of recipients.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string) error
}

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	// From is the SMTP envelope sender (MAIL FROM), a raw mailbox address.
	From string
	// FromName is an optional display name used only for the message header.
	FromName string
}

// SMTPSender implements Notifier over net/smtp.
type SMTPSender struct {
	cfg  SMTPConfig
	auth smtp.Auth
	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTP notifier. PLAIN auth is used when
// credentials are configured.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.User != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPSender{cfg: cfg, auth: auth, send: smtp.SendMail}
}

func (s *SMTPSender) Notify(_ context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return eris.New("notify: no recipients")
	}
	if s.cfg.Host == "" {
		return eris.New("notify: smtp host not configured")
	}

	fromHeader := s.cfg.From
	if strings.TrimSpace(s.cfg.FromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
	}

	msg := []string{
		"From: " + sanitizeHeader(fromHeader),
		"To: " + sanitizeHeader(strings.Join(recipients, ", ")),
		"Subject: " + sanitizeHeader(subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}

	addr := s.cfg.Host + ":" + s.cfg.Port
	if err := s.send(addr, s.auth, s.cfg.From, recipients, []byte(strings.Join(msg, "\r\n"))); err != nil {
		return eris.Wrapf(err, "notify: send mail via %s", addr)
	}
	return nil
}

// sanitizeHeader strips CR/LF to prevent header injection.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	return strings.ReplaceAll(v, "\n", "")
}
