package repository

import (
	"context"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
)

// ProductFilter narrows a product listing. Zero values mean no filter.
type ProductFilter struct {
	CategorySlug string
	Query        string
	IDs          []int64
}

type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]entity.Category, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]entity.Product, error)
	GetProduct(ctx context.Context, id int64) (*entity.Product, error)
	UpsertCategory(ctx context.Context, c *entity.Category) error
	UpsertProduct(ctx context.Context, p *entity.Product) error
}
