package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the slice of product persistence the ledger needs. It is always bound
// to a single unit of work; GetForUpdate holds the product lock until that unit
// commits or rolls back.
type Store interface {
	GetForUpdate(ctx context.Context, id int64) (*Product, error)
	UpdateCounters(ctx context.Context, product Product) error
}

// Reservation is the outcome of a successful Reserve.
type Reservation struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Line is a previously reserved quantity of one product.
type Line struct {
	ProductID int64
	Quantity  int
}

// Ledger owns the stock and popularity counters of products.
type Ledger struct {
	now func() time.Time
}

// NewLedger constructs a Ledger using the wall clock.
func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// NewLedgerWithClock constructs a Ledger with a custom clock, used by tests.
func NewLedgerWithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now}
}

// Reserve takes quantity units out of stock and counts them as purchased.
func (l *Ledger) Reserve(ctx context.Context, store Store, productID int64, quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}

	product, err := store.GetForUpdate(ctx, productID)
	if err != nil {
		return Reservation{}, err
	}

	if product.Quantity < quantity {
		return Reservation{}, &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.Quantity,
		}
	}

	now := l.now()
	product.Quantity -= quantity
	product.PurchaseCount += quantity
	product.LastPurchasedDate = now
	product.UpdatedAt = now

	if err := store.UpdateCounters(ctx, *product); err != nil {
		return Reservation{}, fmt.Errorf("reserve product %d: %w", productID, err)
	}

	return Reservation{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price,
	}, nil
}

// Release returns quantity units to stock, reversing a prior Reserve. Releasing
// against a product that no longer exists is a no-op.
func (l *Ledger) Release(ctx context.Context, store Store, productID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	product, err := store.GetForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil
		}
		return err
	}

	product.Quantity += quantity
	product.PurchaseCount -= quantity
	if product.PurchaseCount < 0 {
		product.PurchaseCount = 0
	}
	product.UpdatedAt = l.now()

	if err := store.UpdateCounters(ctx, *product); err != nil {
		return fmt.Errorf("release product %d: %w", productID, err)
	}

	return nil
}

// ReleaseLines releases every line exactly once. Products are locked in
// ascending id order so concurrent releases cannot deadlock each other.
func (l *Ledger) ReleaseLines(ctx context.Context, store Store, lines []Line) error {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})

	for _, line := range sorted {
		if err := l.Release(ctx, store, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Adjust applies a manual stock correction. The resulting quantity must not be
// negative; popularity counters are left untouched.
func (l *Ledger) Adjust(ctx context.Context, store Store, productID int64, delta int) (*Product, error) {
	product, err := store.GetForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.Quantity+delta < 0 {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: -delta,
			Available: product.Quantity,
		}
	}

	product.Quantity += delta
	product.UpdatedAt = l.now()

	if err := store.UpdateCounters(ctx, *product); err != nil {
		return nil, fmt.Errorf("adjust product %d: %w", productID, err)
	}

	return product, nil
}
