package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	"github.com/oksasatya/go-cantina-online/internal/domain/repository"
)

type OrderRepository struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
	// retries after a serialization failure or deadlock
	retries int
}

func NewOrderRepository(pool *pgxpool.Pool, logger *logrus.Logger) *OrderRepository {
	return &OrderRepository{pool: pool, logger: logger, retries: 1}
}

type lockedProduct struct {
	id    int64
	name  string
	price decimal.Decimal
	stock int
}

// PlaceOrder locks every referenced product row (in id order, so concurrent
// checkouts never deadlock on each other), checks stock, writes the order and
// its items and decrements stock, all in one transaction.
func (r *OrderRepository) PlaceOrder(ctx context.Context, req repository.CheckoutRequest) (*entity.Order, error) {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		var o *entity.Order
		o, err = r.placeOrderOnce(ctx, req)
		if err == nil {
			return o, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		if r.logger != nil {
			r.logger.WithError(err).WithField("attempt", attempt+1).Warn("checkout transaction conflict")
		}
	}
	return nil, errors.Join(repository.ErrConflict, err)
}

func (r *OrderRepository) placeOrderOnce(ctx context.Context, req repository.CheckoutRequest) (*entity.Order, error) {
	lines := append([]repository.CheckoutLine(nil), req.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, translate(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, name, price::text, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	locked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lockedProduct, error) {
		var (
			p     lockedProduct
			price string
		)
		if err := row.Scan(&p.id, &p.name, &price, &p.stock); err != nil {
			return p, err
		}
		d, err := decimal.NewFromString(price)
		p.price = d
		return p, err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]lockedProduct, len(locked))
	for _, p := range locked {
		byID[p.id] = p
	}
	var missing []int64
	for _, l := range lines {
		if _, ok := byID[l.ProductID]; !ok {
			missing = append(missing, l.ProductID)
		}
	}
	if len(missing) > 0 {
		return nil, &repository.MissingProductsError{IDs: missing}
	}
	for _, l := range lines {
		p := byID[l.ProductID]
		if p.stock < l.Quantity {
			return nil, &repository.InsufficientStockError{ProductID: p.id, Name: p.name, Available: p.stock, Requested: l.Quantity}
		}
	}

	o := &entity.Order{Name: req.Name, Note: req.Note, UserID: req.UserID}
	if err := tx.QueryRow(ctx, `
		INSERT INTO orders (name, note, user_id) VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, o.Name, o.Note, o.UserID).Scan(&o.ID, &o.CreatedAt); err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	for _, l := range lines {
		p := byID[l.ProductID]
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4::numeric)
			RETURNING id
		`, o.ID, p.id, l.Quantity, p.price.String())
		batch.Queue(`
			UPDATE products SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND stock >= $1
		`, l.Quantity, p.id)
	}
	br := tx.SendBatch(ctx, batch)
	for _, l := range lines {
		p := byID[l.ProductID]
		item := entity.OrderItem{OrderID: o.ID, ProductID: p.id, ProductName: p.name, Quantity: l.Quantity, Price: p.price}
		if err := br.QueryRow().Scan(&item.ID); err != nil {
			_ = br.Close()
			return nil, err
		}
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return nil, err
		}
		// unreachable while the row lock is held; kept as a guard for the CHECK (stock >= 0)
		if tag.RowsAffected() != 1 {
			_ = br.Close()
			return nil, &repository.InsufficientStockError{ProductID: p.id, Name: p.name, Available: p.stock, Requested: l.Quantity}
		}
		o.Items = append(o.Items, item)
	}
	if err := br.Close(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]entity.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.name, o.note, o.user_id, o.created_at,
		       i.id, i.product_id, p.name, i.quantity, i.price::text
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		JOIN products p ON p.id = i.product_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC, i.id
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []entity.Order{}
	for rows.Next() {
		var (
			o     entity.Order
			it    entity.OrderItem
			price string
		)
		if err := rows.Scan(&o.ID, &o.Name, &o.Note, &o.UserID, &o.CreatedAt,
			&it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &price); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, err
		}
		it.OrderID = o.ID
		it.Price = d
		if n := len(out); n == 0 || out[n-1].ID != o.ID {
			out = append(out, o)
		}
		last := &out[len(out)-1]
		last.Items = append(last.Items, it)
	}
	return out, translate(rows.Err())
}

var _ repository.OrderRepository = (*OrderRepository)(nil)
