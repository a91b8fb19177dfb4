package kafka

import (
	"context"
	"log/slog"

	"github.com/dejobratic/stockledger/internal/orders/domain"
)

// NoopEventBus logs events without sending them to Kafka. Used when no brokers are configured.
type NoopEventBus struct {
	logger *slog.Logger
}

func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	n.logger.DebugContext(ctx, "event::order_placed", "order_id", order.ID, "user_id", order.UserID)
	return nil
}

func (n *NoopEventBus) PublishOrderCancelled(ctx context.Context, order domain.Order) error {
	n.logger.DebugContext(ctx, "event::order_cancelled", "order_id", order.ID)
	return nil
}

func (n *NoopEventBus) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	n.logger.DebugContext(ctx, "event::order_status_changed", "order_id", order.ID, "from", from, "to", order.Status)
	return nil
}
