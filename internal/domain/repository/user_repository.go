package repository

import (
	"context"
	"time"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
)

// UserRepository defines the persistence operations for accounts.
// Lookups by email are case-insensitive.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
}

// PasswordResetRepository stores single-use reset tokens.
type PasswordResetRepository interface {
	// Replace deletes every token of t.UserID and stores t.
	Replace(ctx context.Context, t *entity.PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*entity.PasswordResetToken, error)
	Delete(ctx context.Context, token string) error
	// ConsumeAndSetPassword updates the user's password hash and deletes the
	// token in one step. Returns ErrNotFound when the token is gone.
	ConsumeAndSetPassword(ctx context.Context, token string, passwordHash string, now time.Time) error
}

// AuditRepository appends authentication events.
type AuditRepository interface {
	Append(ctx context.Context, e *entity.AuditEntry) error
}
