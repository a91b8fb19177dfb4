package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks order lifecycle events handed to the broker.
type Metrics struct {
	latency   metric.Float64Histogram
	published metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	latency, err := meter.Float64Histogram(
		"kafka_producer_latency_seconds",
		metric.WithDescription("Time spent writing one order event"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka_producer_latency_seconds histogram: %w", err)
	}

	published, err := meter.Int64Counter(
		"order_events_published_total",
		metric.WithDescription("Order lifecycle events by topic and outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_events_published_total counter: %w", err)
	}

	return &Metrics{latency: latency, published: published}, nil
}

// RecordPublish records one publish attempt on topic. err is the result of
// the write; a cancelled or expired context is counted as a timeout.
func (m *Metrics) RecordPublish(ctx context.Context, topic string, took time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", publishOutcome(err)),
	)
	m.latency.Record(ctx, took.Seconds(), attrs)
	m.published.Add(ctx, 1, attrs)
}

func publishOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}
