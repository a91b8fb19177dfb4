package http

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics covers the order and product API. Requests are labelled by the
// ServeMux route pattern, never the raw path, so ids do not explode cardinality.
type Metrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	duration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Order API request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration_seconds histogram: %w", err)
	}

	total, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Order API requests by route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total counter: %w", err)
	}

	inFlight, err := meter.Int64UpDownCounter(
		"http_requests_in_flight",
		metric.WithDescription("Order API requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_in_flight counter: %w", err)
	}

	return &Metrics{duration: duration, total: total, inFlight: inFlight}, nil
}

func (m *Metrics) RequestStarted(ctx context.Context) {
	m.inFlight.Add(ctx, 1)
}

// RequestFinished closes a request opened with RequestStarted.
func (m *Metrics) RequestFinished(ctx context.Context, method, route string, statusCode int, seconds float64) {
	m.inFlight.Add(ctx, -1)

	routeAttrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	)
	m.total.Add(ctx, 1, routeAttrs, metric.WithAttributes(
		attribute.Int("status_code", statusCode),
		attribute.String("status_class", fmt.Sprintf("%dxx", statusCode/100)),
	))
	m.duration.Record(ctx, seconds, routeAttrs)
}
