package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	"github.com/oksasatya/go-cantina-online/internal/domain/repository"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]entity.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, translate(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Category, error) {
		var c entity.Category
		err := row.Scan(&c.ID, &c.Name, &c.Slug)
		return c, err
	})
	return out, translate(err)
}

const productSelect = `
	SELECT p.id, p.name, p.description, p.price::text, p.stock, p.image_url,
	       COALESCE(p.category_id, 0), p.created_at, p.updated_at,
	       c.id, c.name, c.slug
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.CollectableRow) (entity.Product, error) {
	var (
		p                entity.Product
		price            string
		catID            *int64
		catName, catSlug *string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.ImageURL,
		&p.CategoryID, &p.CreatedAt, &p.UpdatedAt, &catID, &catName, &catSlug); err != nil {
		return p, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return p, err
	}
	p.Price = d
	if catID != nil {
		p.Category = &entity.Category{ID: *catID, Name: deref(catName), Slug: deref(catSlug)}
	}
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *CatalogRepository) ListProducts(ctx context.Context, f repository.ProductFilter) ([]entity.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.CategorySlug != "" {
		args = append(args, f.CategorySlug)
		where = append(where, "c.slug = $"+strconv.Itoa(len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := strconv.Itoa(len(args))
		where = append(where, "(p.name ILIKE $"+n+" OR p.description ILIKE $"+n+")")
	}
	if len(f.IDs) > 0 {
		args = append(args, f.IDs)
		where = append(where, "p.id = ANY($"+strconv.Itoa(len(args))+")")
	}
	sql := productSelect
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY p.name"

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(err)
	}
	out, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, translate(err)
	}
	if out == nil {
		out = []entity.Product{}
	}
	// search results keep the order of f.IDs
	if len(f.IDs) > 0 && f.Query == "" && f.CategorySlug == "" {
		out = orderByIDs(out, f.IDs)
	}
	return out, nil
}

func orderByIDs(ps []entity.Product, ids []int64) []entity.Product {
	byID := make(map[int64]entity.Product, len(ps))
	for _, p := range ps {
		byID[p.ID] = p
	}
	out := make([]entity.Product, 0, len(ps))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	return out
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*entity.Product, error) {
	rows, err := r.pool.Query(ctx, productSelect+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, translate(err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *CatalogRepository) UpsertCategory(ctx context.Context, c *entity.Category) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO categories (name, slug) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, c.Name, c.Slug)
	return translate(row.Scan(&c.ID))
}

// UpsertProduct inserts or updates by name.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p *entity.Product) error {
	var catID *int64
	if p.CategoryID > 0 {
		catID = &p.CategoryID
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, price, stock, image_url, category_id)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			price       = EXCLUDED.price,
			stock       = EXCLUDED.stock,
			image_url   = CASE WHEN EXCLUDED.image_url = '' THEN products.image_url ELSE EXCLUDED.image_url END,
			category_id = EXCLUDED.category_id,
			updated_at  = now()
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description, p.Price.String(), p.Stock, p.ImageURL, catID)
	return translate(row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ repository.CatalogRepository = (*CatalogRepository)(nil)
