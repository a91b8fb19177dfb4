package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"go.opentelemetry.io/otel/attribute"
)

type PlaceOrderCommand struct {
	UserID    int64
	ProductID int64
	Quantity  int
}

func (c PlaceOrderCommand) Operation() string { return OpPlaceOrder }

func (c PlaceOrderCommand) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("order.user_id", c.UserID),
		attribute.Int64("product.id", c.ProductID),
		attribute.Int("order.quantity", c.Quantity),
	}
}

func (c PlaceOrderCommand) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	if c.ProductID <= 0 {
		return fmt.Errorf("%w: product_id is required", domain.ErrValidation)
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}
	return nil
}

type PlaceOrderCommandHandler struct {
	tx     ports.Transactor
	ledger *inventory.Ledger
	events ports.EventBus
	logger *slog.Logger
	now    func() time.Time
}

func NewPlaceOrderCommandHandler(
	tx ports.Transactor,
	ledger *inventory.Ledger,
	events ports.EventBus,
	logger *slog.Logger,
) *PlaceOrderCommandHandler {
	return &PlaceOrderCommandHandler{
		tx:     tx,
		ledger: ledger,
		events: events,
		logger: logger,
		now:    utcNow,
	}
}

func (h *PlaceOrderCommandHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var order domain.Order
	err := h.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		reservation, err := h.ledger.Reserve(ctx, uow.Products(), cmd.ProductID, cmd.Quantity)
		if err != nil {
			return err
		}

		now := h.now()
		order = domain.Order{
			UserID:    cmd.UserID,
			OrderDate: now,
			Status:    domain.StatusPending,
			UpdatedAt: now,
			Items: []domain.OrderItem{{
				ProductID:   reservation.ProductID,
				ProductName: reservation.ProductName,
				Quantity:    reservation.Quantity,
				UnitPrice:   reservation.UnitPrice,
			}},
		}
		if err := order.Validate(); err != nil {
			return err
		}

		return uow.Orders().Create(ctx, &order)
	})
	if err != nil {
		return nil, ports.WrapPersistence(err)
	}

	if err := h.events.PublishOrderPlaced(ctx, order); err != nil {
		h.logger.WarnContext(ctx, "order placed but failed to publish event", "order_id", order.ID, "error", err)
	}

	return &order, nil
}
