package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/stockledger/internal/database"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/dejobratic/stockledger/internal/telemetry"
)

// ObservableTransactor wraps each unit of work in a span and records its
// duration and outcome.
type ObservableTransactor struct {
	tx      ports.Transactor
	metrics *database.Metrics
}

func NewObservableTransactor(tx ports.Transactor, metrics *database.Metrics) *ObservableTransactor {
	return &ObservableTransactor{
		tx:      tx,
		metrics: metrics,
	}
}

func (t *ObservableTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, uow ports.UnitOfWork) error) error {
	ctx, span := telemetry.StartSpan(ctx, "UnitOfWork")
	defer span.End()

	start := time.Now()
	err := t.tx.WithinTx(ctx, fn)
	t.metrics.RecordTransaction(ctx, time.Since(start), err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
