package repository

import "context"

// Store groups the repositories of one backend.
type Store interface {
	Users() UserRepository
	PasswordResets() PasswordResetRepository
	Catalog() CatalogRepository
	Orders() OrderRepository
	Audit() AuditRepository
	Ping(ctx context.Context) error
}
