package email

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"

	"unileads/internal/outbox"
)

// Sender delivers email-channel outbox messages over SMTP when configured.
// It is invoked by an explicit operator action, never by the generators.
type Sender struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func (s *Sender) Enabled() bool {
	return s != nil && s.Host != "" && s.From != ""
}

func (s *Sender) send(m *outbox.Message) error {
	if m.Email == "" {
		return fmt.Errorf("outbox message %s has no email recipient", m.ID)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.From)
	msg.SetHeader("To", m.Email)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Body)

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SendWithRetry retries transient SMTP failures with exponential backoff.
func (s *Sender) SendWithRetry(ctx context.Context, m *outbox.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(func() error { return s.send(m) }, backoff.WithContext(b, ctx))
}
