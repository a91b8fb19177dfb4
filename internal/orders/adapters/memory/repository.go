package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
)

// Store provides an in-memory, transactional store useful for local development
// and tests. Rows are locked per id for the lifetime of a unit of work, mirroring
// SELECT ... FOR UPDATE.
type Store struct {
	mu            sync.RWMutex
	products      map[int64]inventory.Product
	orders        map[int64]domain.Order
	nextProductID int64
	nextOrderID   int64

	productLocks *keyedLocks
	orderLocks   *keyedLocks
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		products:     make(map[int64]inventory.Product),
		orders:       make(map[int64]domain.Order),
		productLocks: newKeyedLocks(),
		orderLocks:   newKeyedLocks(),
	}
}

// WithinTx runs fn against a private write set that is applied atomically when
// fn succeeds and discarded otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow ports.UnitOfWork) error) error {
	t := &tx{
		store:           s,
		products:        make(map[int64]inventory.Product),
		deletedProducts: make(map[int64]struct{}),
		orders:          make(map[int64]domain.Order),
		heldProducts:    make(map[int64]struct{}),
		heldOrders:      make(map[int64]struct{}),
	}
	defer t.unlockAll()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fn(ctx, t); err != nil {
		return err
	}

	t.commit()
	return nil
}

type tx struct {
	store *Store

	products        map[int64]inventory.Product
	deletedProducts map[int64]struct{}
	orders          map[int64]domain.Order

	heldProducts map[int64]struct{}
	heldOrders   map[int64]struct{}
	unlocks      []func()
}

func (t *tx) Orders() ports.OrderRepository     { return orderRepository{t} }
func (t *tx) Products() ports.ProductRepository { return productRepository{t} }

func (t *tx) unlockAll() {
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
	t.unlocks = nil
}

func (t *tx) lockProduct(ctx context.Context, id int64) error {
	if _, held := t.heldProducts[id]; held {
		return nil
	}
	unlock, err := t.store.productLocks.lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock product %d: %w", id, err)
	}
	t.heldProducts[id] = struct{}{}
	t.unlocks = append(t.unlocks, unlock)
	return nil
}

func (t *tx) lockOrder(ctx context.Context, id int64) error {
	if _, held := t.heldOrders[id]; held {
		return nil
	}
	unlock, err := t.store.orderLocks.lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock order %d: %w", id, err)
	}
	t.heldOrders[id] = struct{}{}
	t.unlocks = append(t.unlocks, unlock)
	return nil
}

func (t *tx) product(id int64) (inventory.Product, bool) {
	if _, deleted := t.deletedProducts[id]; deleted {
		return inventory.Product{}, false
	}
	if p, ok := t.products[id]; ok {
		return p, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	p, ok := t.store.products[id]
	return p, ok
}

func (t *tx) order(id int64) (domain.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return cloneOrder(o), true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	o, ok := t.store.orders[id]
	return cloneOrder(o), ok
}

func (t *tx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for id, p := range t.products {
		t.store.products[id] = p
	}
	for id := range t.deletedProducts {
		delete(t.store.products, id)
	}
	for id, o := range t.orders {
		t.store.orders[id] = o
	}
}

func cloneOrder(o domain.Order) domain.Order {
	if o.Items != nil {
		items := make([]domain.OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

type productRepository struct{ t *tx }

func (r productRepository) GetForUpdate(ctx context.Context, id int64) (*inventory.Product, error) {
	if err := r.t.lockProduct(ctx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r productRepository) GetByID(_ context.Context, id int64) (*inventory.Product, error) {
	p, ok := r.t.product(id)
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return &p, nil
}

func (r productRepository) UpdateCounters(_ context.Context, product inventory.Product) error {
	current, ok := r.t.product(product.ID)
	if !ok {
		return inventory.ErrProductNotFound
	}
	if product.Quantity < 0 {
		return errors.New("products_quantity_check: quantity must not be negative")
	}

	current.Quantity = product.Quantity
	current.PurchaseCount = product.PurchaseCount
	current.LastPurchasedDate = product.LastPurchasedDate
	current.UpdatedAt = product.UpdatedAt
	r.t.products[product.ID] = current
	return nil
}

func (r productRepository) Create(_ context.Context, product *inventory.Product) error {
	r.t.store.mu.Lock()
	r.t.store.nextProductID++
	product.ID = r.t.store.nextProductID
	r.t.store.mu.Unlock()

	r.t.products[product.ID] = *product
	r.t.heldProducts[product.ID] = struct{}{}
	return nil
}

func (r productRepository) Delete(ctx context.Context, id int64) error {
	if err := r.t.lockProduct(ctx, id); err != nil {
		return err
	}
	if _, ok := r.t.product(id); !ok {
		return inventory.ErrProductNotFound
	}
	delete(r.t.products, id)
	r.t.deletedProducts[id] = struct{}{}
	return nil
}

func (r productRepository) HasOrderHistory(_ context.Context, id int64) (bool, error) {
	references := func(o domain.Order) bool {
		for _, item := range o.Items {
			if item.ProductID == id {
				return true
			}
		}
		return false
	}

	for _, o := range r.t.orders {
		if references(o) {
			return true, nil
		}
	}

	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	for _, o := range r.t.store.orders {
		if references(o) {
			return true, nil
		}
	}
	return false, nil
}

type orderRepository struct{ t *tx }

func (r orderRepository) Create(_ context.Context, order *domain.Order) error {
	r.t.store.mu.Lock()
	r.t.store.nextOrderID++
	order.ID = r.t.store.nextOrderID
	r.t.store.mu.Unlock()

	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	r.t.orders[order.ID] = cloneOrder(*order)
	r.t.heldOrders[order.ID] = struct{}{}
	return nil
}

func (r orderRepository) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := r.t.order(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (r orderRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	if err := r.t.lockOrder(ctx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// List returns orders respecting the provided filter. Pagination is 1-based.
func (r orderRepository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	merged := make(map[int64]domain.Order)
	r.t.store.mu.RLock()
	for id, o := range r.t.store.orders {
		merged[id] = o
	}
	r.t.store.mu.RUnlock()
	for id, o := range r.t.orders {
		merged[id] = o
	}

	var result []domain.Order
	for _, order := range merged {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if filter.OldestFirst {
			return result[i].ID < result[j].ID
		}
		return result[i].ID > result[j].ID
	})

	page, pageSize := filter.Normalize()
	start := (page - 1) * pageSize
	if start < 0 || start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// UpdateStatus sets the status and updatedAt timestamp for an order.
func (r orderRepository) UpdateStatus(_ context.Context, id int64, status domain.OrderStatus, updatedAt time.Time) error {
	order, ok := r.t.order(id)
	if !ok {
		return domain.ErrNotFound
	}

	order.Status = status
	order.UpdatedAt = updatedAt
	r.t.orders[id] = order
	return nil
}
