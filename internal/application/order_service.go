package application

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	repo "github.com/oksasatya/go-cantina-online/internal/domain/repository"
	"github.com/oksasatya/go-cantina-online/internal/metrics"
	"github.com/oksasatya/go-cantina-online/pkg/apperror"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
)

var (
	ErrInvalidItems      = apperror.Validation(apperror.ReasonInvalidItems, "invalid order items")
	ErrProductNotFound   = apperror.NotFound(apperror.ReasonProductNotFound, "product not found").WithStatus(http.StatusBadRequest)
	ErrInsufficientStock = apperror.Conflict(apperror.ReasonInsufficientStock, "insufficient stock")
	ErrOrderConflict     = apperror.Conflict(apperror.ReasonOrderConflict, "order could not be placed, try again")
	ErrUserMismatch      = apperror.Forbidden(apperror.ReasonUserMismatch, "user does not match the authenticated session")
)

// MaxItemQuantity caps the units of one product in a single order.
const MaxItemQuantity = 1000

// CatalogInvalidator drops cached catalog listings after stock changes.
type CatalogInvalidator interface {
	InvalidateProducts(ctx context.Context)
}

type OrderItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type PlaceOrderInput struct {
	Name   string           `json:"name"`
	Note   string           `json:"note"`
	UserID int64            `json:"userId"`
	Items  []OrderItemInput `json:"items"`
}

// PlaceOrderResult carries the ticket number; it equals the order id.
type PlaceOrderResult struct {
	OrderID     int64 `json:"orderId"`
	OrderNumber int64 `json:"orderNumber"`
}

// InsufficientStockDetails names the product a client must adjust.
type InsufficientStockDetails struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

type OrderService struct {
	Orders  repo.OrderRepository
	Cache   CatalogInvalidator // optional
	Logger  *logrus.Logger
	MaxName int
}

func NewOrderService(store repo.Store, cache CatalogInvalidator, logger *logrus.Logger) *OrderService {
	return &OrderService{Orders: store.Orders(), Cache: cache, Logger: logger, MaxName: 100}
}

func (s *OrderService) log() *logrus.Logger {
	if s.Logger == nil {
		return helpers.NewDiscardLogger()
	}
	return s.Logger
}

// Aggregate validates items and sums quantities per product, ordered by product id.
// Nothing reaches the store when it fails.
func Aggregate(items []OrderItemInput) ([]repo.CheckoutLine, error) {
	if len(items) == 0 {
		return nil, ErrInvalidItems.WithDetails(map[string]string{"items": "must contain at least 1 item(s)"})
	}
	details := map[string]string{}
	sums := map[int64]int{}
	for i, it := range items {
		key := "items[" + strconv.Itoa(i) + "]"
		if it.ProductID <= 0 {
			details[key+".productId"] = "must be greater than 0"
		}
		switch {
		case it.Quantity <= 0:
			details[key+".quantity"] = "must be greater than 0"
		case it.Quantity > MaxItemQuantity-sums[it.ProductID]:
			details[key+".quantity"] = "total per product must be at most " + strconv.Itoa(MaxItemQuantity)
		default:
			sums[it.ProductID] += it.Quantity
		}
	}
	if len(details) > 0 {
		return nil, ErrInvalidItems.WithDetails(details)
	}
	lines := make([]repo.CheckoutLine, 0, len(sums))
	for id, q := range sums {
		lines = append(lines, repo.CheckoutLine{ProductID: id, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

// PlaceOrder runs checkout for the authenticated user authUserID. A body
// userId other than the caller is rejected; zero means the caller.
func (s *OrderService) PlaceOrder(ctx context.Context, authUserID int64, in PlaceOrderInput) (*PlaceOrderResult, error) {
	start := time.Now()
	if in.UserID != 0 && in.UserID != authUserID {
		return nil, ErrUserMismatch
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len([]rune(name)) > s.MaxName {
		metrics.RecordCheckout(metrics.OutcomeInvalid, 0, time.Since(start))
		return nil, apperror.Validation(apperror.ReasonInvalidPayload, "invalid payload").
			WithDetails(map[string]string{"name": "must be between 1 and " + strconv.Itoa(s.MaxName) + " characters long"})
	}
	lines, err := Aggregate(in.Items)
	if err != nil {
		metrics.RecordCheckout(metrics.OutcomeInvalid, 0, time.Since(start))
		return nil, err
	}

	o, err := s.Orders.PlaceOrder(ctx, repo.CheckoutRequest{
		UserID: authUserID,
		Name:   name,
		Note:   strings.TrimSpace(in.Note),
		Lines:  lines,
	})
	if err != nil {
		return nil, s.checkoutError(err, start)
	}

	units := 0
	for _, l := range lines {
		units += l.Quantity
	}
	metrics.RecordCheckout(metrics.OutcomeSuccess, units, time.Since(start))
	s.log().WithFields(logrus.Fields{"order_id": o.ID, "user_id": authUserID, "units": units}).Info("order placed")
	if s.Cache != nil {
		s.Cache.InvalidateProducts(ctx)
	}
	return &PlaceOrderResult{OrderID: o.ID, OrderNumber: o.ID}, nil
}

func (s *OrderService) checkoutError(err error, start time.Time) error {
	var (
		missing *repo.MissingProductsError
		short   *repo.InsufficientStockError
	)
	switch {
	case errors.As(err, &missing):
		metrics.RecordCheckout(metrics.OutcomeProductNotFound, 0, time.Since(start))
		return ErrProductNotFound.WithDetails(map[string]any{"missingIds": missing.IDs})
	case errors.As(err, &short):
		metrics.RecordCheckout(metrics.OutcomeInsufficientStock, 0, time.Since(start))
		e := ErrInsufficientStock.WithDetails(InsufficientStockDetails{
			ProductID: short.ProductID,
			Name:      short.Name,
			Available: short.Available,
			Requested: short.Requested,
		})
		e.Message = "insufficient stock for " + short.Name + ": only " + strconv.Itoa(short.Available) + " left"
		return e
	case errors.Is(err, repo.ErrConflict):
		metrics.RecordCheckout(metrics.OutcomeConflict, 0, time.Since(start))
		return ErrOrderConflict.Wrap(err)
	}
	metrics.RecordCheckout(metrics.OutcomeError, 0, time.Since(start))
	return storeError(err)
}

// OrderItemView is one line of an order history entry.
type OrderItemView struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

type OrderView struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"createdAt"`
	Total     string          `json:"total"`
	Items     []OrderItemView `json:"items"`
}

func NewOrderView(o entity.Order) OrderView {
	v := OrderView{
		ID:        o.ID,
		Name:      o.Name,
		Note:      o.Note,
		CreatedAt: o.CreatedAt,
		Total:     o.Total().StringFixed(2),
		Items:     make([]OrderItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, OrderItemView{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.Price.StringFixed(2),
			Subtotal:  it.Subtotal().StringFixed(2),
		})
	}
	return v
}

// ListOrders returns the caller's orders, newest first. A requested userId
// other than the caller is rejected.
func (s *OrderService) ListOrders(ctx context.Context, authUserID, requestedUserID int64) ([]OrderView, error) {
	if requestedUserID <= 0 {
		return nil, apperror.Validation(apperror.ReasonInvalidPayload, "userId must be a positive integer")
	}
	if requestedUserID != authUserID {
		return nil, ErrUserMismatch
	}
	orders, err := s.Orders.ListByUser(ctx, authUserID)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderView(o))
	}
	return out, nil
}
