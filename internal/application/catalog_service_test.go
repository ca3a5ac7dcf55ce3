package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	repo "github.com/oksasatya/go-cantina-online/internal/domain/repository"
	"github.com/oksasatya/go-cantina-online/internal/infrastructure/memory"
)

type stubSearcher struct {
	ids []int64
	err error
	q   string
}

func (s *stubSearcher) SearchProductIDs(_ context.Context, q string, _ int) ([]int64, error) {
	s.q = q
	return s.ids, s.err
}

func newCatalogFixture(t *testing.T) (*memory.Store, *CatalogService) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	drinks := &entity.Category{Name: "Bebidas", Slug: "bebidas"}
	snacks := &entity.Category{Name: "Lanches", Slug: "lanches"}
	require.NoError(t, store.Catalog().UpsertCategory(ctx, drinks))
	require.NoError(t, store.Catalog().UpsertCategory(ctx, snacks))
	for _, p := range []*entity.Product{
		{Name: "Suco de Laranja", Price: decimal.RequireFromString("5.5"), Stock: 10, CategoryID: drinks.ID},
		{Name: "Coxinha", Description: "frango com catupiry", Price: decimal.RequireFromString("6.5"), Stock: 4, CategoryID: snacks.ID},
	} {
		require.NoError(t, store.Catalog().UpsertProduct(ctx, p))
	}
	return store, NewCatalogService(store, nil, nil, 0, nil)
}

func TestListProducts(t *testing.T) {
	_, svc := newCatalogFixture(t)

	all, err := svc.ListProducts(context.Background(), ProductQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Coxinha", all[0].Name)
	assert.Equal(t, "6.50", all[0].Price)
	require.NotNil(t, all[0].Category)
	assert.Equal(t, "lanches", all[0].Category.Slug)

	drinks, err := svc.ListProducts(context.Background(), ProductQuery{Category: "Bebidas"})
	require.NoError(t, err)
	require.Len(t, drinks, 1)
	assert.Equal(t, "Suco de Laranja", drinks[0].Name)

	none, err := svc.ListProducts(context.Background(), ProductQuery{Category: "doces"})
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestListProductsSearchFallsBackToSQL(t *testing.T) {
	_, svc := newCatalogFixture(t)
	svc.Search = &stubSearcher{err: errors.New("es down")}

	found, err := svc.ListProducts(context.Background(), ProductQuery{Q: "catupiry"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Coxinha", found[0].Name)
}

func TestListProductsUsesSearchIndex(t *testing.T) {
	store, svc := newCatalogFixture(t)
	all, _ := store.Catalog().ListProducts(context.Background(), repo.ProductFilter{})
	var sucoID int64
	for _, p := range all {
		if p.Name == "Suco de Laranja" {
			sucoID = p.ID
		}
	}
	s := &stubSearcher{ids: []int64{sucoID}}
	svc.Search = s

	found, err := svc.ListProducts(context.Background(), ProductQuery{Q: " laranj "})
	require.NoError(t, err)
	assert.Equal(t, "laranj", s.q)
	require.Len(t, found, 1)
	assert.Equal(t, sucoID, found[0].ID)

	s.ids = nil
	found, err = svc.ListProducts(context.Background(), ProductQuery{Q: "pizza"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestListCategories(t *testing.T) {
	_, svc := newCatalogFixture(t)
	cs, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "bebidas", cs[0].Slug)

	// no cache configured: invalidation is a no-op
	svc.InvalidateProducts(context.Background())
}
