package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const productColumns = `id, name, description, price, quantity, purchase_count, last_purchased_date, created_at, updated_at`

// foreignKeyViolation is the SQLSTATE raised by ON DELETE RESTRICT.
const foreignKeyViolation = "23503"

type ProductRepository struct {
	db querier
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*inventory.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *ProductRepository) GetForUpdate(ctx context.Context, id int64) (*inventory.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *ProductRepository) getOne(ctx context.Context, query string, id int64) (*inventory.Product, error) {
	var p inventory.Product
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Quantity,
		&p.PurchaseCount,
		&p.LastPurchasedDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inventory.ErrProductNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepository) UpdateCounters(ctx context.Context, p inventory.Product) error {
	query := `
		UPDATE products
		SET quantity = $1, purchase_count = $2, last_purchased_date = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.Exec(ctx, query, p.Quantity, p.PurchaseCount, p.LastPurchasedDate, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update product counters: %w", err)
	}
	if result.RowsAffected() == 0 {
		return inventory.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Create(ctx context.Context, p *inventory.Product) error {
	query := `
		INSERT INTO products (name, description, price, quantity, purchase_count, last_purchased_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Quantity,
		p.PurchaseCount,
		p.LastPurchasedDate,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return inventory.ErrProductInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return inventory.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) HasOrderHistory(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order history: %w", err)
	}
	return exists, nil
}
