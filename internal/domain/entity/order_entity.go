package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is immutable once created together with its items.
// The order id doubles as the ticket number shown to customers.
type Order struct {
	ID        int64
	Name      string
	Note      string
	UserID    int64
	CreatedAt time.Time
	Items     []OrderItem
}

// OrderItem captures the unit price at checkout time so later catalog
// price changes never rewrite history.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}
