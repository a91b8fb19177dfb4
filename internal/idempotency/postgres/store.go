package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// An entry is live while the ttl parameter is <= 0 or the row is younger than it.
// A claim is a row with status_code 0.
const (
	selectLiveKey = `
		SELECT fingerprint, status_code, body, order_id
		FROM idempotency_keys
		WHERE key = $1
		  AND ($2::float8 <= 0 OR created_at > now() - make_interval(secs => $2::float8))`

	insertClaim = `
		INSERT INTO idempotency_keys (key, fingerprint, status_code, body, order_id)
		VALUES ($1, $2, 0, ''::bytea, 0)
		ON CONFLICT (key) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
		    status_code = 0,
		    body        = ''::bytea,
		    order_id    = 0,
		    created_at  = now()
		WHERE $3::float8 > 0
		  AND idempotency_keys.created_at <= now() - make_interval(secs => $3::float8)
		RETURNING key`

	completeKey = `
		INSERT INTO idempotency_keys (key, fingerprint, status_code, body, order_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
		    status_code = EXCLUDED.status_code,
		    body        = EXCLUDED.body,
		    order_id    = EXCLUDED.order_id,
		    created_at  = now()
		WHERE idempotency_keys.status_code = 0
		   OR ($6::float8 > 0 AND idempotency_keys.created_at <= now() - make_interval(secs => $6::float8))`

	deleteClaim = `DELETE FROM idempotency_keys WHERE key = $1 AND status_code = 0`
)

// Store keeps idempotent placement responses in idempotency_keys.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	var resp ports.StoredResponse
	err := s.pool.QueryRow(ctx, selectLiveKey, key, s.ttl.Seconds()).
		Scan(&resp.Fingerprint, &resp.StatusCode, &resp.Body, &resp.OrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select idempotency key %q: %w", key, err)
	}
	return &resp, nil
}

// Claim inserts a pending row for key, or takes over an expired one. The
// primary key serializes concurrent claims.
func (s *Store) Claim(ctx context.Context, key, fingerprint string) (*ports.StoredResponse, bool, error) {
	var claimedKey string
	err := s.pool.QueryRow(ctx, insertClaim, key, fingerprint, s.ttl.Seconds()).Scan(&claimedKey)
	if err == nil {
		return nil, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("claim idempotency key %q: %w", key, err)
	}

	existing, err := s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// The live row expired between the insert and the read.
		existing = &ports.StoredResponse{Fingerprint: fingerprint}
	}
	return existing, false, nil
}

func (s *Store) Save(ctx context.Context, key string, r ports.StoredResponse) error {
	if _, err := s.pool.Exec(ctx, completeKey,
		key, r.Fingerprint, r.StatusCode, r.Body, r.OrderID, s.ttl.Seconds(),
	); err != nil {
		return fmt.Errorf("save idempotency key %q: %w", key, err)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteClaim, key); err != nil {
		return fmt.Errorf("release idempotency key %q: %w", key, err)
	}
	return nil
}
