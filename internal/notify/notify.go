// Package notify emails a short report once a run is done.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("protscrape.internal.notify")

var ErrNotConfigured = errors.New("notify: email is not configured")

type EmailConfig struct {
	Server       string   `json:"server" yaml:"server"`
	Port         int      `json:"port" yaml:"port"`
	EmailAddress string   `json:"email_address" yaml:"email_address"`
	Password     string   `json:"password" yaml:"password"`
	To           []string `json:"to" yaml:"to"`
}

type Config struct {
	Email EmailConfig `json:"email" yaml:"email"`
}

func (c Config) Enabled() bool {
	return c.Email.Server != "" && c.Email.EmailAddress != "" && len(c.Email.To) > 0
}

// sendFunc matches (*email.Email).Send, it is swapped out in tests.
type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

type Notifier struct {
	config EmailConfig
	send   sendFunc
}

func New(cfg Config) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return &Notifier{
		config: cfg.Email,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}, nil
}

func (n *Notifier) compose(subject, body string) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("protscrape <%s>", n.config.EmailAddress)
	mail.To = n.config.To
	mail.Subject = subject
	mail.Text = []byte(body)
	return mail
}

// Send mails body to every configured recipient. Servers that do not
// support AUTH are retried without credentials.
func (n *Notifier) Send(ctx context.Context, subject, body string) error {
	_, span := tracer.Start(ctx, "Send")
	defer span.End()

	mail := n.compose(subject, body)
	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)

	err := n.send(
		mail,
		addr,
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}
