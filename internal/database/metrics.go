package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics measures units of work against the order store.
type Metrics struct {
	txDuration metric.Float64Histogram
	txTotal    metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	txDuration, err := meter.Float64Histogram(
		"db_transaction_duration_seconds",
		metric.WithDescription("Duration of units of work from begin to commit or rollback"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_transaction_duration_seconds histogram: %w", err)
	}

	txTotal, err := meter.Int64Counter(
		"db_transactions_total",
		metric.WithDescription("Units of work by outcome"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_transactions_total counter: %w", err)
	}

	return &Metrics{txDuration: txDuration, txTotal: txTotal}, nil
}

// RecordTransaction records one unit of work. err is what WithinTx returned:
// nil is a commit, an expired deadline a timeout, anything else a rollback.
func (m *Metrics) RecordTransaction(ctx context.Context, took time.Duration, err error) {
	outcome := "commit"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "rollback"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.txTotal.Add(ctx, 1, attrs)
	m.txDuration.Record(ctx, took.Seconds(), attrs)
}

// RegisterPoolStats exports pgxpool connection counts as gauges read at
// collection time.
func RegisterPoolStats(meter metric.Meter, pool *pgxpool.Pool) error {
	conns, err := meter.Int64ObservableGauge(
		"db_pool_connections",
		metric.WithDescription("Pool connections by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("create db_pool_connections gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(conns, int64(stat.AcquiredConns()), metric.WithAttributes(attribute.String("state", "acquired")))
		o.ObserveInt64(conns, int64(stat.IdleConns()), metric.WithAttributes(attribute.String("state", "idle")))
		o.ObserveInt64(conns, int64(stat.MaxConns()), metric.WithAttributes(attribute.String("state", "max")))
		return nil
	}, conns)
	if err != nil {
		return fmt.Errorf("register pool stats callback: %w", err)
	}
	return nil
}
