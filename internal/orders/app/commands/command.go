package commands

import (
	"context"
	"time"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"go.opentelemetry.io/otel/attribute"
)

const (
	OpPlaceOrder   = "place_order"
	OpCancelOrder  = "cancel_order"
	OpUpdateStatus = "update_status"
)

// Command is the common shape of order lifecycle commands.
type Command interface {
	Operation() string
	Attributes() []attribute.KeyValue
}

// CommandHandler executes a command and returns the resulting order.
type CommandHandler[C Command] interface {
	Handle(ctx context.Context, cmd C) (*domain.Order, error)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func linesOf(order domain.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
