package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	unitsReserved     metric.Int64Counter
	unitsReleased     metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.operationsTotal, err = meter.Int64Counter(
		"order_operations_total",
		metric.WithDescription("Total number of order lifecycle operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_operations_total counter: %w", err)
	}

	m.operationDuration, err = meter.Float64Histogram(
		"order_operation_duration_seconds",
		metric.WithDescription("Duration of order lifecycle operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_operation_duration histogram: %w", err)
	}

	m.unitsReserved, err = meter.Int64Counter(
		"inventory_units_reserved_total",
		metric.WithDescription("Stock units taken by committed order placements"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create inventory_units_reserved_total counter: %w", err)
	}

	m.unitsReleased, err = meter.Int64Counter(
		"inventory_units_released_total",
		metric.WithDescription("Stock units returned by committed cancellations"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create inventory_units_released_total counter: %w", err)
	}

	return m, nil
}

// RecordOperation counts one operation; outcome is "success" or an error kind.
func (m *Metrics) RecordOperation(ctx context.Context, operation, outcome string, durationSeconds float64) {
	m.operationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	m.operationDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

func (m *Metrics) RecordUnitsReserved(ctx context.Context, units int) {
	m.unitsReserved.Add(ctx, int64(units))
}

func (m *Metrics) RecordUnitsReleased(ctx context.Context, units int) {
	m.unitsReleased.Add(ctx, int64(units))
}
