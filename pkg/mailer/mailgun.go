package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

const mailgunTimeout = 10 * time.Second

// Mailgun sends email through the Mailgun HTTP API.
type Mailgun struct {
	Sender string

	client *mg.MailgunImpl
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Sender: sender, client: mg.NewMailgun(domain, apiKey)}
}

// Send delivers one message. A 4xx rejection other than 429 is wrapped in
// ErrUndeliverable since retrying the same message cannot succeed.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	msg := m.client.NewMessage(m.Sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	ctx, cancel := context.WithTimeout(ctx, mailgunTimeout)
	defer cancel()
	_, _, err := m.client.Send(ctx, msg)
	if err != nil && permanent(err) {
		return fmt.Errorf("%w: %w", ErrUndeliverable, err)
	}
	return err
}

func permanent(err error) bool {
	var ure *mg.UnexpectedResponseError
	if !errors.As(err, &ure) {
		return false
	}
	return ure.Actual >= 400 && ure.Actual < 500 && ure.Actual != http.StatusTooManyRequests
}
