package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mailtpl "github.com/oksasatya/go-cantina-online/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either Template+Data or Subject+Text/HTML must be set.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // "password_reset", "welcome"
	Data     map[string]any `json:"data,omitempty"`
}

// ErrUndeliverable marks jobs that will never succeed on retry.
var ErrUndeliverable = errors.New("undeliverable email job")

// Publisher puts email jobs on the queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// FallbackSubject is used when a template job renders an empty subject.
func FallbackSubject(template string) string {
	switch strings.ToLower(template) {
	case mailtpl.PasswordReset:
		return "Redefinição de senha"
	case mailtpl.Welcome:
		return "Bem-vindo"
	default:
		return "Notificação"
	}
}

// EnsureRecipient fills Email/RecipientEmail from To when the producer left them out.
func EnsureRecipient(job *EmailJob) {
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
	if v, ok := job.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["RecipientEmail"] = job.To
	}
}

// Render resolves the final subject, text and html of job.
func Render(job *EmailJob) (subject, text, html string, err error) {
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return "", "", "", fmt.Errorf("email job for %s has neither template nor body", job.To)
		}
		return job.Subject, job.Text, job.HTML, nil
	}
	EnsureRecipient(job)
	subject, text, html, err = mailtpl.Render(job.Template, job.Data)
	if err != nil {
		return "", "", "", err
	}
	if job.Subject != "" {
		subject = job.Subject
	}
	if subject == "" {
		subject = FallbackSubject(job.Template)
	}
	return subject, text, html, nil
}

// Deliver renders job and hands it to s.
func Deliver(ctx context.Context, s Sender, job *EmailJob) error {
	if strings.TrimSpace(job.To) == "" {
		return fmt.Errorf("%w: no recipient", ErrUndeliverable)
	}
	subject, text, html, err := Render(job)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUndeliverable, err)
	}
	return s.Send(ctx, job.To, subject, text, html)
}
