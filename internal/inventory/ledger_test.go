package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	products  map[int64]inventory.Product
	updateErr error
	locked    []int64
}

func newFakeStore(products ...inventory.Product) *fakeStore {
	s := &fakeStore{products: make(map[int64]inventory.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetForUpdate(_ context.Context, id int64) (*inventory.Product, error) {
	s.locked = append(s.locked, id)
	p, ok := s.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return &p, nil
}

func (s *fakeStore) UpdateCounters(_ context.Context, p inventory.Product) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.products[p.ID] = p
	return nil
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newLedger() *inventory.Ledger {
	return inventory.NewLedgerWithClock(func() time.Time { return fixedNow })
}

func fireStick() inventory.Product {
	return inventory.Product{
		ID:            3,
		Name:          "Amazon Fire TV Stick 4K",
		Price:         decimal.RequireFromString("49.99"),
		Quantity:      50,
		PurchaseCount: 65,
	}
}

func TestLedgerReserve(t *testing.T) {
	t.Run("decrements stock and increments purchase count", func(t *testing.T) {
		store := newFakeStore(fireStick())
		ledger := newLedger()

		res, err := ledger.Reserve(context.Background(), store, 3, 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got := store.products[3]
		if got.Quantity != 48 {
			t.Errorf("expected quantity 48, got %d", got.Quantity)
		}
		if got.PurchaseCount != 67 {
			t.Errorf("expected purchase count 67, got %d", got.PurchaseCount)
		}
		if !got.LastPurchasedDate.Equal(fixedNow) {
			t.Errorf("expected last purchased date %v, got %v", fixedNow, got.LastPurchasedDate)
		}
		if !res.UnitPrice.Equal(decimal.RequireFromString("49.99")) {
			t.Errorf("expected unit price 49.99, got %s", res.UnitPrice)
		}
		if res.ProductName != "Amazon Fire TV Stick 4K" {
			t.Errorf("unexpected product name %q", res.ProductName)
		}
	})

	t.Run("allows reserving the entire stock", func(t *testing.T) {
		store := newFakeStore(fireStick())

		if _, err := newLedger().Reserve(context.Background(), store, 3, 50); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := store.products[3].Quantity; got != 0 {
			t.Errorf("expected quantity 0, got %d", got)
		}
	})

	t.Run("rejects one unit more than available", func(t *testing.T) {
		store := newFakeStore(fireStick())

		_, err := newLedger().Reserve(context.Background(), store, 3, 51)
		if !errors.Is(err, inventory.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}

		var stockErr *inventory.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected *InsufficientStockError, got %T", err)
		}
		if stockErr.Available != 50 {
			t.Errorf("expected available 50, got %d", stockErr.Available)
		}
		if got := store.products[3]; got.Quantity != 50 || got.PurchaseCount != 65 {
			t.Errorf("expected counters unchanged, got quantity=%d purchase_count=%d", got.Quantity, got.PurchaseCount)
		}
	})

	t.Run("returns not found for unknown product", func(t *testing.T) {
		store := newFakeStore()

		_, err := newLedger().Reserve(context.Background(), store, 42, 1)
		if !errors.Is(err, inventory.ErrProductNotFound) {
			t.Errorf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		store := newFakeStore(fireStick())

		for _, q := range []int{0, -1} {
			_, err := newLedger().Reserve(context.Background(), store, 3, q)
			if !errors.Is(err, inventory.ErrInvalidQuantity) {
				t.Errorf("quantity %d: expected ErrInvalidQuantity, got %v", q, err)
			}
		}
		if len(store.locked) != 0 {
			t.Errorf("expected no product lookups, got %v", store.locked)
		}
	})

	t.Run("wraps store update failure", func(t *testing.T) {
		store := newFakeStore(fireStick())
		store.updateErr = errors.New("connection reset")

		_, err := newLedger().Reserve(context.Background(), store, 3, 1)
		if !errors.Is(err, store.updateErr) {
			t.Errorf("expected wrapped store error, got %v", err)
		}
	})
}

func TestLedgerRelease(t *testing.T) {
	t.Run("is the inverse of reserve", func(t *testing.T) {
		store := newFakeStore(fireStick())
		ledger := newLedger()
		ctx := context.Background()

		res, err := ledger.Reserve(ctx, store, 3, 7)
		if err != nil {
			t.Fatalf("reserve failed: %v", err)
		}
		if err := ledger.Release(ctx, store, 3, res.Quantity); err != nil {
			t.Fatalf("release failed: %v", err)
		}

		got := store.products[3]
		if got.Quantity != 50 || got.PurchaseCount != 65 {
			t.Errorf("expected 50/65 after release, got %d/%d", got.Quantity, got.PurchaseCount)
		}
	})

	t.Run("ignores vanished product", func(t *testing.T) {
		store := newFakeStore()

		if err := newLedger().Release(context.Background(), store, 9, 2); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		store := newFakeStore(fireStick())

		if err := newLedger().Release(context.Background(), store, 3, 0); !errors.Is(err, inventory.ErrInvalidQuantity) {
			t.Errorf("expected ErrInvalidQuantity, got %v", err)
		}
	})
}

func TestLedgerReleaseLines(t *testing.T) {
	t.Run("locks products in ascending id order", func(t *testing.T) {
		a := fireStick()
		b := fireStick()
		b.ID = 1
		store := newFakeStore(a, b)

		lines := []inventory.Line{{ProductID: 3, Quantity: 1}, {ProductID: 1, Quantity: 2}}
		if err := newLedger().ReleaseLines(context.Background(), store, lines); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(store.locked) != 2 || store.locked[0] != 1 || store.locked[1] != 3 {
			t.Errorf("expected lock order [1 3], got %v", store.locked)
		}
		if got := store.products[1].Quantity; got != 52 {
			t.Errorf("expected quantity 52, got %d", got)
		}
		if got := store.products[3].Quantity; got != 51 {
			t.Errorf("expected quantity 51, got %d", got)
		}
	})
}

func TestLedgerAdjust(t *testing.T) {
	tests := []struct {
		name    string
		delta   int
		wantQty int
		wantErr error
	}{
		{"restock", 10, 60, nil},
		{"write off", -20, 30, nil},
		{"down to zero", -50, 0, nil},
		{"below zero", -51, 50, inventory.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(fireStick())

			_, err := newLedger().Adjust(context.Background(), store, 3, tt.delta)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}

			got := store.products[3]
			if got.Quantity != tt.wantQty {
				t.Errorf("expected quantity %d, got %d", tt.wantQty, got.Quantity)
			}
			if got.PurchaseCount != 65 {
				t.Errorf("expected purchase count untouched, got %d", got.PurchaseCount)
			}
		})
	}
}
