package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

type sent struct {
	addr     string
	withAuth bool
	mail     *email.Email
}

func testConfig() Config {
	return Config{Email: EmailConfig{
		Server:       "smtp.example.org",
		Port:         587,
		EmailAddress: "scraper@example.org",
		Password:     "hunter2",
		To:           []string{"lab@example.org"},
	}}
}

func newTestNotifier(t *testing.T, errs ...error) (*Notifier, *[]sent) {
	n, err := New(testConfig())
	require.NoError(t, err)

	var calls []sent
	n.send = func(mail *email.Email, addr string, auth smtp.Auth) error {
		calls = append(calls, sent{addr: addr, withAuth: auth != nil, mail: mail})
		if len(errs) == 0 {
			return nil
		}
		next := errs[0]
		errs = errs[1:]
		return next
	}
	return n, &calls
}

func TestNotConfigured(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNotConfigured)

	cfg := testConfig()
	cfg.Email.To = nil
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestSend(t *testing.T) {
	n, calls := newTestNotifier(t)
	require.NoError(t, n.Send(context.Background(), "protscrape run", "pdb: 2 records"))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "smtp.example.org:587", call.addr)
	require.True(t, call.withAuth)
	require.Equal(t, "protscrape <scraper@example.org>", call.mail.From)
	require.Equal(t, []string{"lab@example.org"}, call.mail.To)
	require.Equal(t, "protscrape run", call.mail.Subject)
	require.Equal(t, "pdb: 2 records", string(call.mail.Text))
}

func TestSendFallsBackWithoutAuth(t *testing.T) {
	n, calls := newTestNotifier(t, errors.New("smtp: server doesn't support AUTH"))
	require.NoError(t, n.Send(context.Background(), "subject", "body"))

	require.Len(t, *calls, 2)
	require.True(t, (*calls)[0].withAuth)
	require.False(t, (*calls)[1].withAuth)
}

func TestSendFailure(t *testing.T) {
	n, calls := newTestNotifier(t, errors.New("connection refused"))
	err := n.Send(context.Background(), "subject", "body")
	require.ErrorContains(t, err, "connection refused")
	require.Len(t, *calls, 1)
}
