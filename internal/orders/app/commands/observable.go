package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/metrics"
	"github.com/dejobratic/stockledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableCommandHandler wraps a handler with a span, structured logs and metrics.
type ObservableCommandHandler[C Command] struct {
	handler  CommandHandler[C]
	spanName string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewObservableCommandHandler[C Command](
	handler CommandHandler[C],
	spanName string,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *ObservableCommandHandler[C] {
	return &ObservableCommandHandler[C]{
		handler:  handler,
		spanName: spanName,
		logger:   logger,
		metrics:  metrics,
	}
}

func (o *ObservableCommandHandler[C]) Handle(ctx context.Context, cmd C) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, o.spanName)
	defer span.End()

	telemetry.AddSpanAttributes(span, cmd.Attributes()...)

	start := time.Now()
	outcome := "success"
	defer func() {
		o.metrics.RecordOperation(ctx, cmd.Operation(), outcome, time.Since(start).Seconds())
	}()

	o.logger.InfoContext(ctx, "handling order command", "operation", cmd.Operation())

	order, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		outcome = ErrorKind(err)
		telemetry.RecordSpanError(span, err)
		level := slog.LevelWarn
		if outcome == "persistence" {
			level = slog.LevelError
		}
		o.logger.Log(ctx, level, "order command failed",
			"operation", cmd.Operation(),
			"outcome", outcome,
			"error", err,
		)
		return nil, err
	}

	units := 0
	for _, item := range order.Items {
		units += item.Quantity
	}
	switch {
	case cmd.Operation() == OpPlaceOrder:
		o.metrics.RecordUnitsReserved(ctx, units)
	case order.Status == domain.StatusCancelled:
		o.metrics.RecordUnitsReleased(ctx, units)
	}

	telemetry.AddSpanAttributes(span,
		attribute.Int64("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
		attribute.Int("order.units", units),
	)

	o.logger.InfoContext(ctx, "order command succeeded",
		"operation", cmd.Operation(),
		"order_id", order.ID,
		"status", order.Status,
	)

	telemetry.SetSpanSuccess(span)
	return order, nil
}

// ErrorKind maps an error onto a low-cardinality label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, inventory.ErrProductNotFound), errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, inventory.ErrInvalidQuantity):
		return "validation"
	default:
		return "persistence"
	}
}
