package ports

import (
	"context"

	"github.com/dejobratic/stockledger/internal/orders/domain"
)

// EventBus defines the contract for publishing order lifecycle events. Events
// are published after the unit of work commits.
type EventBus interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
	PublishOrderCancelled(ctx context.Context, order domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error
}
