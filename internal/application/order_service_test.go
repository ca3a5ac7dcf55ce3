package application

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	repo "github.com/oksasatya/go-cantina-online/internal/domain/repository"
	"github.com/oksasatya/go-cantina-online/internal/infrastructure/memory"
	"github.com/oksasatya/go-cantina-online/pkg/apperror"
)

type spyOrders struct {
	repo.OrderRepository
	calls int
}

func (s *spyOrders) PlaceOrder(ctx context.Context, req repo.CheckoutRequest) (*entity.Order, error) {
	s.calls++
	return s.OrderRepository.PlaceOrder(ctx, req)
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) InvalidateProducts(context.Context) { c.n++ }

func newOrderFixture(t *testing.T) (*memory.Store, *OrderService, *spyOrders) {
	t.Helper()
	store := memory.NewStore()
	spy := &spyOrders{OrderRepository: store.Orders()}
	svc := NewOrderService(store, nil, nil)
	svc.Orders = spy
	return store, svc, spy
}

func addProduct(t *testing.T, store *memory.Store, id int64, name, price string, stock int) {
	t.Helper()
	p := &entity.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, store.Catalog().UpsertProduct(context.Background(), p))
}

func stockOf(t *testing.T, store *memory.Store, id int64) int {
	t.Helper()
	p, err := store.Catalog().GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestAggregateSumsDuplicates(t *testing.T) {
	lines, err := Aggregate([]OrderItemInput{
		{ProductID: 7, Quantity: 1},
		{ProductID: 3, Quantity: 2},
		{ProductID: 7, Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []repo.CheckoutLine{{ProductID: 3, Quantity: 2}, {ProductID: 7, Quantity: 5}}, lines)
}

func TestAggregateRejectsBadItems(t *testing.T) {
	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, ErrInvalidItems)

	_, err = Aggregate([]OrderItemInput{{ProductID: 1, Quantity: 0}, {ProductID: 0, Quantity: -1}})
	require.ErrorIs(t, err, ErrInvalidItems)
	d := apperror.From(err).Details.(map[string]string)
	assert.Contains(t, d, "items[0].quantity")
	assert.Contains(t, d, "items[1].productId")
	assert.Contains(t, d, "items[1].quantity")
}

func TestPlaceOrderRejectsBeforeStore(t *testing.T) {
	store, svc, spy := newOrderFixture(t)
	addProduct(t, store, 5, "Coxinha", "6.50", 3)

	for _, q := range []int{0, -1} {
		_, err := svc.PlaceOrder(context.Background(), 1, PlaceOrderInput{
			Name:  "Ana",
			Items: []OrderItemInput{{ProductID: 5, Quantity: q}},
		})
		assert.ErrorIs(t, err, ErrInvalidItems)
		assert.Equal(t, 400, apperror.From(err).HTTPStatus())
	}
	_, err := svc.PlaceOrder(context.Background(), 1, PlaceOrderInput{Items: []OrderItemInput{{ProductID: 5, Quantity: 1}}})
	assert.True(t, apperror.HasReason(err, apperror.ReasonInvalidPayload), "name is required")

	assert.Zero(t, spy.calls)
	assert.Equal(t, 3, stockOf(t, store, 5))
}

func TestPlaceOrderRejectsOversizedQuantities(t *testing.T) {
	store, svc, spy := newOrderFixture(t)
	addProduct(t, store, 5, "Coxinha", "6.50", 1)

	cases := [][]OrderItemInput{
		{{ProductID: 5, Quantity: math.MaxInt}, {ProductID: 5, Quantity: math.MaxInt}},
		{{ProductID: 5, Quantity: MaxItemQuantity + 1}},
		{{ProductID: 5, Quantity: MaxItemQuantity}, {ProductID: 5, Quantity: 1}},
	}
	for _, items := range cases {
		_, err := svc.PlaceOrder(context.Background(), 1, PlaceOrderInput{Name: "Ana", Items: items})
		require.ErrorIs(t, err, ErrInvalidItems)
		assert.Equal(t, 400, apperror.From(err).HTTPStatus())
	}

	assert.Zero(t, spy.calls)
	assert.Equal(t, 1, stockOf(t, store, 5))
}

func TestAggregateAcceptsQuantityCap(t *testing.T) {
	lines, err := Aggregate([]OrderItemInput{
		{ProductID: 5, Quantity: MaxItemQuantity - 1},
		{ProductID: 5, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []repo.CheckoutLine{{ProductID: 5, Quantity: MaxItemQuantity}}, lines)
}

func TestPlaceOrderSuccess(t *testing.T) {
	store, svc, _ := newOrderFixture(t)
	inv := &countingInvalidator{}
	svc.Cache = inv
	addProduct(t, store, 5, "Coxinha", "6.50", 3)
	addProduct(t, store, 6, "Suco", "5.00", 10)

	res, err := svc.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		Name:   " Ana ",
		Note:   "sem cebola",
		UserID: 1,
		Items: []OrderItemInput{
			{ProductID: 5, Quantity: 1},
			{ProductID: 6, Quantity: 2},
			{ProductID: 5, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, res.OrderNumber)
	assert.Equal(t, 1, stockOf(t, store, 5))
	assert.Equal(t, 8, stockOf(t, store, 6))
	assert.Equal(t, 1, inv.n)

	views, err := svc.ListOrders(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Ana", views[0].Name)
	assert.Equal(t, "23.00", views[0].Total)
	require.Len(t, views[0].Items, 2)
	assert.Equal(t, "6.50", views[0].Items[0].UnitPrice)
	assert.Equal(t, "13.00", views[0].Items[0].Subtotal)
}

func TestPlaceOrderUserMismatch(t *testing.T) {
	store, svc, spy := newOrderFixture(t)
	addProduct(t, store, 5, "Coxinha", "6.50", 3)
	_, err := svc.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		Name: "Ana", UserID: 2, Items: []OrderItemInput{{ProductID: 5, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrUserMismatch)
	assert.Equal(t, 403, apperror.From(err).HTTPStatus())
	assert.Zero(t, spy.calls)

	_, err = svc.ListOrders(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrUserMismatch)
	_, err = svc.ListOrders(context.Background(), 1, 0)
	assert.True(t, apperror.HasReason(err, apperror.ReasonInvalidPayload))
}

func TestPlaceOrderProductNotFound(t *testing.T) {
	store, svc, _ := newOrderFixture(t)
	addProduct(t, store, 5, "Coxinha", "6.50", 3)

	_, err := svc.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		Name: "Ana", Items: []OrderItemInput{{ProductID: 5, Quantity: 1}, {ProductID: 77, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrProductNotFound)
	ae := apperror.From(err)
	assert.Equal(t, 400, ae.HTTPStatus())
	assert.Equal(t, map[string]any{"missingIds": []int64{77}}, ae.Details)
	assert.Equal(t, 3, stockOf(t, store, 5))
}

func TestPlaceOrderInsufficientStockNamesProduct(t *testing.T) {
	store, svc, _ := newOrderFixture(t)
	addProduct(t, store, 5, "Coxinha", "6.50", 2)

	_, err := svc.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		Name: "Ana", Items: []OrderItemInput{{ProductID: 5, Quantity: 3}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	ae := apperror.From(err)
	assert.Equal(t, 409, ae.HTTPStatus())
	assert.Equal(t, InsufficientStockDetails{ProductID: 5, Name: "Coxinha", Available: 2, Requested: 3}, ae.Details)
	assert.Contains(t, ae.Message, "only 2 left")
}

func TestPlaceOrderLastUnitRace(t *testing.T) {
	store, svc, _ := newOrderFixture(t)
	addProduct(t, store, 5, "Brigadeiro", "2.50", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), int64(i+1), PlaceOrderInput{
				Name: "cliente", Items: []OrderItemInput{{ProductID: 5, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	ok, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.HasReason(err, apperror.ReasonInsufficientStock):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, stockOf(t, store, 5))
}

func TestOrderHistoryIgnoresLaterPriceChanges(t *testing.T) {
	store, svc, _ := newOrderFixture(t)
	addProduct(t, store, 5, "Coxinha", "6.50", 5)
	_, err := svc.PlaceOrder(context.Background(), 1, PlaceOrderInput{Name: "Ana", Items: []OrderItemInput{{ProductID: 5, Quantity: 1}}})
	require.NoError(t, err)

	p, _ := store.Catalog().GetProduct(context.Background(), 5)
	p.Price = decimal.RequireFromString("7.25")
	require.NoError(t, store.Catalog().UpsertProduct(context.Background(), p))

	views, err := svc.ListOrders(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "6.50", views[0].Items[0].UnitPrice)
}
