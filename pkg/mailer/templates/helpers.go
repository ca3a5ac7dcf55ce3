package templates

import (
	"time"
)

// Brand carries the product-wide fields every email shows.
type Brand struct {
	AppName    string
	SupportURL string
	MenuURL    string
}

// Option pattern
type Option func(*EmailData)

func WithIP(ip string) Option { return func(d *EmailData) { d.IP = ip } }
func WithTime(t time.Time) Option {
	return func(d *EmailData) { d.Time = t.UTC().Format("02/01/2006 15:04") }
}
func WithResetURL(url string) Option { return func(d *EmailData) { d.ResetURL = url } }

func WithExpiresAt(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02/01/2006 15:04 MST")
	}
}

// NewBaseEmailData fills the common fields then applies opts.
func NewBaseEmailData(b Brand, typ, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Type:           typ,
		AppName:        b.AppName,
		SupportURL:     b.SupportURL,
		MenuURL:        b.MenuURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewPasswordResetData(b Brand, name, email, resetURL string, expiresAt time.Time, opts ...Option) map[string]any {
	opts = append([]Option{WithResetURL(resetURL), WithExpiresAt(expiresAt)}, opts...)
	return ToMap(NewBaseEmailData(b, PasswordReset, name, email, opts...))
}

func NewWelcomeData(b Brand, name, email string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(b, Welcome, name, email, opts...))
}
