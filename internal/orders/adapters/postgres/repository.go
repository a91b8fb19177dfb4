package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, user_id, order_date, status, updated_at`

type OrderRepository struct {
	db querier
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (user_id, order_date, status, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		order.UserID,
		order.OrderDate,
		order.Status,
		order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if _, err := r.db.Exec(ctx, itemQuery,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, id int64) (*domain.Order, error) {
	var order domain.Order
	err := r.db.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderDate,
		&order.Status,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page, pageSize := filter.Normalize()

	direction := "DESC"
	if filter.OldestFirst {
		direction = "ASC"
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::bigint IS NULL OR user_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY order_date ` + direction + `, id ` + direction + `
		LIMIT $3 OFFSET $4
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	offset := (page - 1) * pageSize

	rows, err := r.db.Query(ctx, query, filter.UserID, statusFilter, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderDate,
			&order.Status,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	query := `
		SELECT order_id, product_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, product_id
	`

	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, updatedAt time.Time) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(ctx, query, status, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}
