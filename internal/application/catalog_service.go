package application

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	repo "github.com/oksasatya/go-cantina-online/internal/domain/repository"
	"github.com/oksasatya/go-cantina-online/internal/metrics"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
)

// ProductSearcher finds product ids for a free-text query, best match first.
type ProductSearcher interface {
	SearchProductIDs(ctx context.Context, q string, limit int) ([]int64, error)
}

type CategoryView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type ProductView struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       string        `json:"price"`
	Stock       int           `json:"stock"`
	ImageURL    string        `json:"imageUrl"`
	CategoryID  int64         `json:"categoryId"`
	Category    *CategoryView `json:"category"`
}

func NewProductView(p entity.Product) ProductView {
	v := ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
	}
	if p.Category != nil {
		v.Category = &CategoryView{ID: p.Category.ID, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	return v
}

type ProductQuery struct {
	Category string
	Q        string
}

type CatalogService struct {
	Catalog  repo.CatalogRepository
	Redis    redis.Cmdable   // optional
	Search   ProductSearcher // optional
	CacheTTL time.Duration
	Logger   *logrus.Logger
}

func NewCatalogService(store repo.Store, rdb redis.Cmdable, search ProductSearcher, ttl time.Duration, logger *logrus.Logger) *CatalogService {
	return &CatalogService{Catalog: store.Catalog(), Redis: rdb, Search: search, CacheTTL: ttl, Logger: logger}
}

func (s *CatalogService) log() *logrus.Logger {
	if s.Logger == nil {
		return helpers.NewDiscardLogger()
	}
	return s.Logger
}

func (s *CatalogService) cacheEnabled() bool { return s.Redis != nil && s.CacheTTL > 0 }

// cached loads key from redis or fills it with load. Redis failures fall through to load.
func cached[T any](ctx context.Context, s *CatalogService, key string, load func() (T, error)) (T, error) {
	if s.cacheEnabled() {
		var v T
		ok, err := helpers.RedisGetJSON(ctx, s.Redis, key, &v)
		switch {
		case err != nil:
			s.log().WithError(err).WithField("key", key).Warn("catalog cache read failed")
		case ok:
			metrics.CatalogCache.WithLabelValues("hit").Inc()
			return v, nil
		default:
			metrics.CatalogCache.WithLabelValues("miss").Inc()
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if s.cacheEnabled() {
		if err := helpers.RedisSetJSON(ctx, s.Redis, key, v, s.CacheTTL); err != nil {
			s.log().WithError(err).WithField("key", key).Warn("catalog cache write failed")
		}
	}
	return v, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]CategoryView, error) {
	return cached(ctx, s, helpers.KeyCatalog("categories", "all"), func() ([]CategoryView, error) {
		cs, err := s.Catalog.ListCategories(ctx)
		if err != nil {
			return nil, storeError(err)
		}
		out := make([]CategoryView, 0, len(cs))
		for _, c := range cs {
			out = append(out, CategoryView{ID: c.ID, Name: c.Name, Slug: c.Slug})
		}
		return out, nil
	})
}

// ListProducts lists the menu, optionally narrowed by category slug and a text query.
// Text queries go to the search index when configured and fall back to SQL matching.
func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) ([]ProductView, error) {
	q.Category = strings.ToLower(strings.TrimSpace(q.Category))
	q.Q = strings.TrimSpace(q.Q)
	if q.Q != "" {
		return s.search(ctx, q)
	}
	variant := q.Category
	if variant == "" {
		variant = "all"
	}
	return cached(ctx, s, helpers.KeyCatalog("products", variant), func() ([]ProductView, error) {
		return s.load(ctx, repo.ProductFilter{CategorySlug: q.Category})
	})
}

func (s *CatalogService) search(ctx context.Context, q ProductQuery) ([]ProductView, error) {
	if s.Search != nil {
		ids, err := s.Search.SearchProductIDs(ctx, q.Q, 50)
		if err == nil {
			if len(ids) == 0 {
				return []ProductView{}, nil
			}
			return s.load(ctx, repo.ProductFilter{CategorySlug: q.Category, IDs: ids})
		}
		s.log().WithError(err).Warn("product search failed, falling back to sql")
	}
	return s.load(ctx, repo.ProductFilter{CategorySlug: q.Category, Query: q.Q})
}

func (s *CatalogService) load(ctx context.Context, f repo.ProductFilter) ([]ProductView, error) {
	ps, err := s.Catalog.ListProducts(ctx, f)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]ProductView, 0, len(ps))
	for _, p := range ps {
		out = append(out, NewProductView(p))
	}
	return out, nil
}

// InvalidateProducts drops every cached product listing.
func (s *CatalogService) InvalidateProducts(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if err := helpers.RedisDelPattern(ctx, s.Redis, helpers.KeyCatalog("products", "*")); err != nil {
		s.log().WithError(err).Warn("catalog cache invalidation failed")
	}
}
