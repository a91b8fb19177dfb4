package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is returned when a product id does not resolve.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is matched by every *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity is returned for non-positive reserve/release quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrProductInUse is returned when deleting a product that has order history.
	ErrProductInUse = errors.New("product has order history")
)

// InsufficientStockError carries the stock that was actually available.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d available in stock for product %d (requested %d)", e.Available, e.ProductID, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
