//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dejobratic/stockledger/internal/database"
	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/adapters/postgres"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	testpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testpostgres.Run(ctx,
		"postgres:16-alpine",
		testpostgres.WithDatabase("test"),
		testpostgres.WithUsername("test"),
		testpostgres.WithPassword("test"),
		testpostgres.BasicWaitStrategies(),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := database.RunMigrations(connStr); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := database.NewPool(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

func seedProduct(t *testing.T, store *postgres.Store, quantity int) inventory.Product {
	t.Helper()
	now := time.Now().UTC()
	product := inventory.Product{
		Name:              "Amazon Fire TV Stick 4K",
		Price:             decimal.RequireFromString("49.99"),
		Quantity:          quantity,
		PurchaseCount:     65,
		LastPurchasedDate: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		return uow.Products().Create(ctx, &product)
	})
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product
}

func TestStoreOrderRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool, 5*time.Second)
	ctx := context.Background()
	product := seedProduct(t, store, 10)

	order := domain.Order{
		UserID:    7,
		OrderDate: time.Now().UTC(),
		Status:    domain.StatusPending,
		UpdatedAt: time.Now().UTC(),
		Items: []domain.OrderItem{{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    2,
			UnitPrice:   product.Price,
		}},
	}

	err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		return uow.Orders().Create(ctx, &order)
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	if order.ID == 0 {
		t.Fatal("expected order id to be assigned")
	}

	var retrieved *domain.Order
	err = store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		var err error
		retrieved, err = uow.Orders().GetByID(ctx, order.ID)
		return err
	})
	if err != nil {
		t.Fatalf("failed to retrieve order: %v", err)
	}

	if retrieved.UserID != 7 || retrieved.Status != domain.StatusPending {
		t.Errorf("unexpected order %+v", retrieved)
	}
	if len(retrieved.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(retrieved.Items))
	}
	if !retrieved.Items[0].UnitPrice.Equal(decimal.RequireFromString("49.99")) {
		t.Errorf("expected unit price 49.99, got %s", retrieved.Items[0].UnitPrice)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		return uow.Orders().UpdateStatus(ctx, order.ID, domain.StatusProcessing, time.Now().UTC())
	})
	if err != nil {
		t.Fatalf("failed to update status: %v", err)
	}

	t.Run("product with history cannot be deleted", func(t *testing.T) {
		err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			return uow.Products().Delete(ctx, product.ID)
		})
		if !errors.Is(err, inventory.ErrProductInUse) {
			t.Errorf("expected ErrProductInUse, got %v", err)
		}
	})

	t.Run("list filters by user", func(t *testing.T) {
		other := int64(8)
		var orders []domain.Order
		err := store.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			var err error
			orders, err = uow.Orders().List(ctx, ports.ListFilter{UserID: &other})
			return err
		})
		if err != nil {
			t.Fatalf("failed to list orders: %v", err)
		}
		if len(orders) != 0 {
			t.Errorf("expected no orders for user 8, got %d", len(orders))
		}
	})
}

func TestStoreGetByID_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool, 0)

	err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		_, err := uow.Orders().GetByID(ctx, 404)
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool, 0)
	product := seedProduct(t, store, 10)
	ledger := inventory.NewLedger()
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		if _, err := ledger.Reserve(ctx, uow.Products(), product.ID, 4); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var got *inventory.Product
	_ = store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		got, err = uow.Products().GetByID(ctx, product.ID)
		return err
	})
	if got.Quantity != 10 || got.PurchaseCount != 65 {
		t.Errorf("expected 10/65 after rollback, got %d/%d", got.Quantity, got.PurchaseCount)
	}
}

func TestStoreConcurrentReservations(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool, 10*time.Second)
	const stock, attempts = 5, 20
	product := seedProduct(t, store, stock)
	ledger := inventory.NewLedger()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
				_, err := ledger.Reserve(ctx, uow.Products(), product.ID, 1)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, inventory.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != stock || rejected != attempts-stock {
		t.Errorf("expected %d succeeded and %d rejected, got %d and %d", stock, attempts-stock, succeeded, rejected)
	}
}
