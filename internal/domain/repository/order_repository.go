package repository

import (
	"context"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
)

// CheckoutLine is one aggregated line of a checkout request.
type CheckoutLine struct {
	ProductID int64
	Quantity  int
}

// CheckoutRequest is validated and aggregated before it reaches the store:
// every ProductID appears once and every Quantity is positive.
type CheckoutRequest struct {
	UserID int64
	Name   string
	Note   string
	Lines  []CheckoutLine
}

// OrderRepository persists orders. PlaceOrder is all-or-nothing: either the
// order, its items and every stock decrement are committed together, or
// nothing changes.
type OrderRepository interface {
	PlaceOrder(ctx context.Context, req CheckoutRequest) (*entity.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]entity.Order, error)
}
