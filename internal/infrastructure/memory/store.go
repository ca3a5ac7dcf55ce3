// Package memory implements every repository with process memory.
// A single Store guards all tables with one mutex so PlaceOrder is atomic
// with respect to every other operation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	"github.com/oksasatya/go-cantina-online/internal/domain/repository"
)

type Store struct {
	mu sync.Mutex

	seq int64

	users      map[int64]entity.User
	resets     map[string]entity.PasswordResetToken
	categories map[int64]entity.Category
	products   map[int64]entity.Product
	orders     []entity.Order
	audit      []entity.AuditEntry

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:      map[int64]entity.User{},
		resets:     map[string]entity.PasswordResetToken{},
		categories: map[int64]entity.Category{},
		products:   map[int64]entity.Product{},
		now:        time.Now,
	}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Users returns the store as a UserRepository.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

func (s *Store) PasswordResets() repository.PasswordResetRepository { return resetRepo{s} }

func (s *Store) Catalog() repository.CatalogRepository { return catalogRepo{s} }

func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }

func (s *Store) Audit() repository.AuditRepository { return auditRepo{s} }

// AuditEntries returns a copy of the audit log.
func (s *Store) AuditEntries() []entity.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.AuditEntry(nil), s.audit...)
}

type userRepo struct{ s *Store }

func (r userRepo) emailTaken(email string, except int64) bool {
	for _, u := range r.s.users {
		if u.ID != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r userRepo) Create(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.emailTaken(u.Email, 0) {
		return repository.ErrDuplicateEmail
	}
	now := r.s.now()
	u.ID = r.s.next()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) Update(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.emailTaken(u.Email, u.ID) {
		return repository.ErrDuplicateEmail
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = r.s.now()
	r.s.users[u.ID] = *u
	return nil
}

type resetRepo struct{ s *Store }

func (r resetRepo) Replace(_ context.Context, t *entity.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, v := range r.s.resets {
		if v.UserID == t.UserID {
			delete(r.s.resets, k)
		}
	}
	t.ID = r.s.next()
	t.CreatedAt = r.s.now()
	r.s.resets[t.Token] = *t
	return nil
}

func (r resetRepo) GetByToken(_ context.Context, token string) (*entity.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.resets[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r resetRepo) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.resets, token)
	return nil
}

func (r resetRepo) ConsumeAndSetPassword(_ context.Context, token, passwordHash string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.resets[token]
	if !ok || t.Expired(now) {
		return repository.ErrNotFound
	}
	u, ok := r.s.users[t.UserID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.s.now()
	r.s.users[u.ID] = u
	delete(r.s.resets, token)
	return nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, e *entity.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *e)
	return nil
}

type catalogRepo struct{ s *Store }

func (r catalogRepo) ListCategories(context.Context) ([]entity.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entity.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r catalogRepo) ListProducts(_ context.Context, f repository.ProductFilter) ([]entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids map[int64]bool
	if len(f.IDs) > 0 {
		ids = make(map[int64]bool, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = true
		}
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := []entity.Product{}
	for _, p := range r.s.products {
		cat, hasCat := r.s.categories[p.CategoryID]
		if f.CategorySlug != "" && (!hasCat || cat.Slug != f.CategorySlug) {
			continue
		}
		if ids != nil && !ids[p.ID] {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			continue
		}
		if hasCat {
			c := cat
			p.Category = &c
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r catalogRepo) GetProduct(_ context.Context, id int64) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if c, ok := r.s.categories[p.CategoryID]; ok {
		p.Category = &c
	}
	return &p, nil
}

func (r catalogRepo) UpsertCategory(_ context.Context, c *entity.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.categories {
		if cur.Slug == c.Slug {
			c.ID = cur.ID
			r.s.categories[c.ID] = *c
			return nil
		}
	}
	if c.ID == 0 {
		c.ID = r.s.next()
	}
	r.s.categories[c.ID] = *c
	return nil
}

// UpsertProduct matches an existing product by ID, or by name when ID is zero.
func (r catalogRepo) UpsertProduct(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	if p.ID == 0 {
		for _, cur := range r.s.products {
			if cur.Name == p.Name {
				p.ID = cur.ID
				break
			}
		}
	}
	if cur, ok := r.s.products[p.ID]; ok {
		p.CreatedAt = cur.CreatedAt
	} else {
		if p.ID == 0 {
			p.ID = r.s.next()
		} else if p.ID > r.s.seq {
			r.s.seq = p.ID
		}
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	cp.Category = nil
	r.s.products[p.ID] = cp
	return nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) PlaceOrder(_ context.Context, req repository.CheckoutRequest) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var missing []int64
	for _, l := range req.Lines {
		if _, ok := r.s.products[l.ProductID]; !ok {
			missing = append(missing, l.ProductID)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, &repository.MissingProductsError{IDs: missing}
	}
	for _, l := range req.Lines {
		p := r.s.products[l.ProductID]
		if p.Stock < l.Quantity {
			return nil, &repository.InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock, Requested: l.Quantity}
		}
	}

	o := entity.Order{
		ID:        r.s.next(),
		Name:      req.Name,
		Note:      req.Note,
		UserID:    req.UserID,
		CreatedAt: r.s.now(),
	}
	for _, l := range req.Lines {
		p := r.s.products[l.ProductID]
		o.Items = append(o.Items, entity.OrderItem{
			ID:          r.s.next(),
			OrderID:     o.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			Price:       p.Price,
		})
		p.Stock -= l.Quantity
		p.UpdatedAt = o.CreatedAt
		r.s.products[p.ID] = p
	}
	r.s.orders = append(r.s.orders, o)
	out := o
	out.Items = append([]entity.OrderItem(nil), o.Items...)
	return &out, nil
}

func (r orderRepo) ListByUser(_ context.Context, userID int64) ([]entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []entity.Order{}
	for i := len(r.s.orders) - 1; i >= 0; i-- {
		o := r.s.orders[i]
		if o.UserID != userID {
			continue
		}
		o.Items = append([]entity.OrderItem(nil), o.Items...)
		out = append(out, o)
	}
	return out, nil
}
var _ repository.Store = (*Store)(nil)
