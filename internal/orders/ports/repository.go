package ports

import (
	"context"
	"time"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
)

// OrderRepository exposes order persistence bound to one unit of work.
type OrderRepository interface {
	// Create inserts the order and its items, assigning order.ID.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// GetForUpdate loads the order and holds its lock until the unit of work ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, updatedAt time.Time) error
}

// ProductRepository exposes product persistence bound to one unit of work.
type ProductRepository interface {
	inventory.Store
	GetByID(ctx context.Context, id int64) (*inventory.Product, error)
	// Create inserts the product, assigning product.ID.
	Create(ctx context.Context, product *inventory.Product) error
	Delete(ctx context.Context, id int64) error
	HasOrderHistory(ctx context.Context, id int64) (bool, error)
}

// UnitOfWork groups the repositories that share one transaction.
type UnitOfWork interface {
	Orders() OrderRepository
	Products() ProductRepository
}

// Transactor runs fn inside a transaction. All writes made through uow commit
// together when fn returns nil and are rolled back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// ListFilter narrows list queries by owner, status and pagination.
type ListFilter struct {
	UserID      *int64
	Status      *domain.OrderStatus
	OldestFirst bool
	Page        int
	PageSize    int
}

const defaultPageSize = 20

// Normalize returns the 1-based page and page size, applying defaults.
func (f ListFilter) Normalize() (page, pageSize int) {
	page = f.Page
	if page <= 0 {
		page = 1
	}
	pageSize = f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}
