package queries_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dejobratic/stockledger/internal/identity"
	"github.com/dejobratic/stockledger/internal/orders/adapters/memory"
	"github.com/dejobratic/stockledger/internal/orders/app/queries"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/shopspring/decimal"
)

var (
	alice   = identity.Identity{UserID: 1, Role: identity.RoleUser}
	bob     = identity.Identity{UserID: 2, Role: identity.RoleUser}
	manager = identity.Identity{UserID: 99, Role: identity.RoleManager}
)

func seedOrder(t *testing.T, store *memory.Store, userID int64, status domain.OrderStatus) int64 {
	t.Helper()
	order := domain.Order{
		UserID: userID,
		Status: status,
		Items:  []domain.OrderItem{{ProductID: 1, ProductName: "Kindle", Quantity: 1, UnitPrice: decimal.NewFromInt(90)}},
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		return uow.Orders().Create(ctx, &order)
	})
	if err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return order.ID
}

func TestGetOrder(t *testing.T) {
	store := memory.NewStore()
	handler := queries.NewGetOrderQueryHandler(store)
	ctx := context.Background()
	id := seedOrder(t, store, alice.UserID, domain.StatusPending)

	t.Run("owner can read the order", func(t *testing.T) {
		order, err := handler.Handle(ctx, queries.GetOrderQuery{OrderID: id, Caller: alice})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID != id || len(order.Items) != 1 {
			t.Errorf("unexpected order %+v", order)
		}
	})

	t.Run("manager can read any order", func(t *testing.T) {
		if _, err := handler.Handle(ctx, queries.GetOrderQuery{OrderID: id, Caller: manager}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("other customers get not found", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.GetOrderQuery{OrderID: id, Caller: bob})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.GetOrderQuery{OrderID: 404, Caller: manager})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.GetOrderQuery{OrderID: 0, Caller: manager})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestListOrders(t *testing.T) {
	store := memory.NewStore()
	handler := queries.NewListOrdersQueryHandler(store)
	ctx := context.Background()

	first := seedOrder(t, store, alice.UserID, domain.StatusPending)
	seedOrder(t, store, bob.UserID, domain.StatusPending)
	seedOrder(t, store, alice.UserID, domain.StatusCompleted)
	last := seedOrder(t, store, bob.UserID, domain.StatusPending)

	t.Run("customers only see their own orders", func(t *testing.T) {
		orders, err := handler.Handle(ctx, queries.ListOrdersQuery{Caller: alice})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(orders) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(orders))
		}
		for _, o := range orders {
			if o.UserID != alice.UserID {
				t.Errorf("leaked order %d of user %d", o.ID, o.UserID)
			}
		}
	})

	t.Run("manager pending queue is oldest first", func(t *testing.T) {
		pending := domain.StatusPending
		orders, err := handler.Handle(ctx, queries.ListOrdersQuery{Caller: manager, Status: &pending})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(orders) != 3 {
			t.Fatalf("expected 3 pending orders, got %d", len(orders))
		}
		if orders[0].ID != first || orders[2].ID != last {
			t.Errorf("expected oldest first, got %d..%d", orders[0].ID, orders[2].ID)
		}
	})

	t.Run("manager default view is newest first", func(t *testing.T) {
		orders, err := handler.Handle(ctx, queries.ListOrdersQuery{Caller: manager, PageSize: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(orders) != 2 || orders[0].ID != last {
			t.Errorf("expected newest order %d first, got %+v", last, orders)
		}
	})

	t.Run("rejects oversized pages", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.ListOrdersQuery{Caller: manager, PageSize: 1000})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("rejects page numbers whose offset would overflow", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.ListOrdersQuery{Caller: manager, Page: (1 << 61) + 1, PageSize: 4})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("last allowed page past the end is empty", func(t *testing.T) {
		orders, err := handler.Handle(ctx, queries.ListOrdersQuery{Caller: manager, Page: 100_000, PageSize: 100})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(orders) != 0 {
			t.Errorf("expected no orders, got %d", len(orders))
		}
	})
}
