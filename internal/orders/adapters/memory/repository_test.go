package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/adapters/memory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/shopspring/decimal"
)

func seedProduct(t *testing.T, store *memory.Store, quantity int) int64 {
	t.Helper()
	product := inventory.Product{Name: "Kindle", Price: decimal.RequireFromString("189.99"), Quantity: quantity}
	err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		return uow.Products().Create(ctx, &product)
	})
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product.ID
}

func getProduct(t *testing.T, store *memory.Store, id int64) *inventory.Product {
	t.Helper()
	var product *inventory.Product
	err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		var err error
		product, err = uow.Products().GetByID(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("failed to get product %d: %v", id, err)
	}
	return product
}

func TestStoreRollback(t *testing.T) {
	store := memory.NewStore()
	id := seedProduct(t, store, 10)
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		p, err := uow.Products().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p.Quantity = 3
		if err := uow.Products().UpdateCounters(ctx, *p); err != nil {
			return err
		}
		order := domain.Order{UserID: 1, Status: domain.StatusPending, Items: []domain.OrderItem{{ProductID: id, Quantity: 7}}}
		if err := uow.Orders().Create(ctx, &order); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if got := getProduct(t, store, id).Quantity; got != 10 {
		t.Errorf("expected quantity 10 after rollback, got %d", got)
	}

	var orders []domain.Order
	_ = store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		orders, err = uow.Orders().List(ctx, ports.ListFilter{})
		return err
	})
	if len(orders) != 0 {
		t.Errorf("expected no orders after rollback, got %d", len(orders))
	}
}

func TestStoreRejectsNegativeQuantity(t *testing.T) {
	store := memory.NewStore()
	id := seedProduct(t, store, 1)

	err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		p, err := uow.Products().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p.Quantity = -1
		return uow.Products().UpdateCounters(ctx, *p)
	})
	if err == nil {
		t.Fatal("expected check constraint error, got nil")
	}
}

func TestStoreProductLockBlocksUntilCommit(t *testing.T) {
	store := memory.NewStore()
	id := seedProduct(t, store, 5)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
			if _, err := uow.Products().GetForUpdate(ctx, id); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		_, err := uow.Products().GetForUpdate(ctx, id)
		return err
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected lock wait to time out, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("holder failed: %v", err)
	}

	err = store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		_, err := uow.Products().GetForUpdate(ctx, id)
		return err
	})
	if err != nil {
		t.Errorf("expected lock to be free after commit, got %v", err)
	}
}

func TestStoreOrders(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	create := func(userID int64, status domain.OrderStatus) int64 {
		order := domain.Order{
			UserID:    userID,
			OrderDate: time.Now().UTC(),
			Status:    status,
			Items:     []domain.OrderItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
		}
		err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			return uow.Orders().Create(ctx, &order)
		})
		if err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		return order.ID
	}

	first := create(1, domain.StatusPending)
	create(2, domain.StatusCompleted)
	third := create(1, domain.StatusPending)

	list := func(filter ports.ListFilter) []domain.Order {
		var result []domain.Order
		err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			var err error
			result, err = uow.Orders().List(ctx, filter)
			return err
		})
		if err != nil {
			t.Fatalf("failed to list orders: %v", err)
		}
		return result
	}

	t.Run("newest first by default", func(t *testing.T) {
		result := list(ports.ListFilter{})
		if len(result) != 3 {
			t.Fatalf("expected 3 orders, got %d", len(result))
		}
		if result[0].ID != third {
			t.Errorf("expected newest order %d first, got %d", third, result[0].ID)
		}
	})

	t.Run("filter by user and status oldest first", func(t *testing.T) {
		userID := int64(1)
		status := domain.StatusPending
		result := list(ports.ListFilter{UserID: &userID, Status: &status, OldestFirst: true})
		if len(result) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(result))
		}
		if result[0].ID != first {
			t.Errorf("expected oldest order %d first, got %d", first, result[0].ID)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		if got := len(list(ports.ListFilter{Page: 2, PageSize: 2})); got != 1 {
			t.Errorf("expected 1 order on page 2, got %d", got)
		}
		if got := len(list(ports.ListFilter{Page: 3, PageSize: 2})); got != 0 {
			t.Errorf("expected empty page 3, got %d", got)
		}
	})

	t.Run("items carry the assigned order id", func(t *testing.T) {
		var order *domain.Order
		err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			var err error
			order, err = uow.Orders().GetByID(ctx, first)
			return err
		})
		if err != nil {
			t.Fatalf("failed to get order: %v", err)
		}
		if order.Items[0].OrderID != first {
			t.Errorf("expected item order id %d, got %d", first, order.Items[0].OrderID)
		}
	})

	t.Run("update status of missing order", func(t *testing.T) {
		err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			return uow.Orders().UpdateStatus(ctx, 999, domain.StatusCompleted, time.Now())
		})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStoreHasOrderHistory(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	referenced := seedProduct(t, store, 5)
	unreferenced := seedProduct(t, store, 5)

	err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		order := domain.Order{UserID: 1, Status: domain.StatusCancelled, Items: []domain.OrderItem{{ProductID: referenced, Quantity: 1}}}
		return uow.Orders().Create(ctx, &order)
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	_ = store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		if has, _ := uow.Products().HasOrderHistory(ctx, referenced); !has {
			t.Error("expected referenced product to have history")
		}
		if has, _ := uow.Products().HasOrderHistory(ctx, unreferenced); has {
			t.Error("expected unreferenced product to have no history")
		}
		return nil
	})
}
