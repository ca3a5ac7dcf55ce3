package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/internal/domain/repository"
)

// Store exposes every postgres repository over one pool.
type Store struct {
	pool    *pgxpool.Pool
	users   *UserRepository
	resets  *PasswordResetRepository
	catalog *CatalogRepository
	orders  *OrderRepository
	audit   *AuditRepository
}

func NewStore(pool *pgxpool.Pool, logger *logrus.Logger) *Store {
	return &Store{
		pool:    pool,
		users:   NewUserRepository(pool),
		resets:  NewPasswordResetRepository(pool),
		catalog: NewCatalogRepository(pool),
		orders:  NewOrderRepository(pool, logger),
		audit:   NewAuditRepository(pool),
	}
}

func (s *Store) Users() repository.UserRepository                   { return s.users }
func (s *Store) PasswordResets() repository.PasswordResetRepository { return s.resets }
func (s *Store) Catalog() repository.CatalogRepository              { return s.catalog }
func (s *Store) Orders() repository.OrderRepository                 { return s.orders }
func (s *Store) Audit() repository.AuditRepository                  { return s.audit }

func (s *Store) Ping(ctx context.Context) error { return Ping(ctx, s.pool) }

var _ repository.Store = (*Store)(nil)
