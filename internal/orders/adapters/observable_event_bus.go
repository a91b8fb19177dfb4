package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/stockledger/internal/kafka"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/dejobratic/stockledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableEventBus traces and measures each lifecycle event publish.
type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	return e.observe(ctx, "EventBus.PublishOrderPlaced", kafka.TopicOrderPlaced, order, func(ctx context.Context) error {
		return e.bus.PublishOrderPlaced(ctx, order)
	})
}

func (e *ObservableEventBus) PublishOrderCancelled(ctx context.Context, order domain.Order) error {
	return e.observe(ctx, "EventBus.PublishOrderCancelled", kafka.TopicOrderCancelled, order, func(ctx context.Context) error {
		return e.bus.PublishOrderCancelled(ctx, order)
	})
}

func (e *ObservableEventBus) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	return e.observe(ctx, "EventBus.PublishOrderStatusChanged", kafka.TopicOrderStatusChanged, order, func(ctx context.Context) error {
		return e.bus.PublishOrderStatusChanged(ctx, order, from)
	})
}

func (e *ObservableEventBus) observe(ctx context.Context, spanName, topic string, order domain.Order, publish func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.Int64("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
		attribute.String("messaging.destination.name", topic),
	)

	start := time.Now()
	err := publish(ctx)
	e.metrics.RecordPublish(ctx, topic, time.Since(start), err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
