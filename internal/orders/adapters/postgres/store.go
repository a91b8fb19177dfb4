package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store runs units of work against Postgres. Row locks are taken with
// SELECT ... FOR UPDATE under READ COMMITTED.
type Store struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

// NewStore constructs a Store. A zero txTimeout leaves the caller's deadline untouched.
func NewStore(pool *pgxpool.Pool, txTimeout time.Duration) *Store {
	return &Store{pool: pool, txTimeout: txTimeout}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow ports.UnitOfWork) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// No-op once committed.
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(ctx, unitOfWork{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type unitOfWork struct {
	db querier
}

func (u unitOfWork) Orders() ports.OrderRepository     { return &OrderRepository{db: u.db} }
func (u unitOfWork) Products() ports.ProductRepository { return &ProductRepository{db: u.db} }
