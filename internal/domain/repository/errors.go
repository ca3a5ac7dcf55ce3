package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUnavailable marks a store that could not be reached.
	ErrUnavailable = errors.New("store unavailable")
	// ErrConflict marks a transaction that kept losing to concurrent writers.
	ErrConflict = errors.New("transaction conflict")
)

// MissingProductsError is returned by PlaceOrder when some product ids do not exist.
type MissingProductsError struct {
	IDs []int64
}

func (e *MissingProductsError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return "products not found: " + strings.Join(ids, ", ")
}

// InsufficientStockError is returned by PlaceOrder for the first line whose
// requested quantity exceeds the stock observed inside the transaction.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Name, e.Available, e.Requested)
}
