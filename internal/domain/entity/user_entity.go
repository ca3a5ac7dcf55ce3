package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// PasswordHash holds a bcrypt hash; Email is stored lowercased.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PasswordResetToken is a single-use credential for the reset-password flow.
// At most one live token exists per user.
type PasswordResetToken struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// AuditEntry records an authentication event.
type AuditEntry struct {
	UserID    int64 // 0 when unknown
	Email     string
	Action    string
	IP        string
	UserAgent string
	Metadata  map[string]any
}
