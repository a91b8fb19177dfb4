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

// CancelOrderCommand is a customer cancelling one of their own orders.
type CancelOrderCommand struct {
	OrderID          int64
	RequestingUserID int64
}

func (c CancelOrderCommand) Operation() string { return OpCancelOrder }

func (c CancelOrderCommand) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("order.id", c.OrderID),
		attribute.Int64("order.requesting_user_id", c.RequestingUserID),
	}
}

func (c CancelOrderCommand) Validate() error {
	if c.OrderID <= 0 {
		return fmt.Errorf("%w: order_id is required", domain.ErrValidation)
	}
	if c.RequestingUserID <= 0 {
		return fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	return nil
}

type CancelOrderCommandHandler struct {
	tx     ports.Transactor
	ledger *inventory.Ledger
	events ports.EventBus
	policy domain.Policy
	logger *slog.Logger
	now    func() time.Time
}

func NewCancelOrderCommandHandler(
	tx ports.Transactor,
	ledger *inventory.Ledger,
	events ports.EventBus,
	policy domain.Policy,
	logger *slog.Logger,
) *CancelOrderCommandHandler {
	return &CancelOrderCommandHandler{
		tx:     tx,
		ledger: ledger,
		events: events,
		policy: policy,
		logger: logger,
		now:    utcNow,
	}
}

func (h *CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var order *domain.Order
	err := h.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		var err error
		order, err = uow.Orders().GetForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}

		// Other users' orders are indistinguishable from missing ones.
		if order.UserID != cmd.RequestingUserID {
			return domain.ErrNotFound
		}

		if order.IsTerminal() {
			return fmt.Errorf("%w: order %d is already %s", domain.ErrInvalidTransition, order.ID, order.Status)
		}
		if !h.policy.CustomerMayCancel(order.Status) {
			return fmt.Errorf("%w: order %d can no longer be cancelled by the customer (%s)", domain.ErrInvalidTransition, order.ID, order.Status)
		}

		return cancelWithinTx(ctx, uow, h.ledger, order, h.now())
	})
	if err != nil {
		return nil, ports.WrapPersistence(err)
	}

	if err := h.events.PublishOrderCancelled(ctx, *order); err != nil {
		h.logger.WarnContext(ctx, "order cancelled but failed to publish event", "order_id", order.ID, "error", err)
	}

	return order, nil
}

// cancelWithinTx moves order to cancelled and returns every item to stock, once.
func cancelWithinTx(ctx context.Context, uow ports.UnitOfWork, ledger *inventory.Ledger, order *domain.Order, at time.Time) error {
	if err := order.TransitionTo(domain.StatusCancelled, at); err != nil {
		return err
	}

	if err := ledger.ReleaseLines(ctx, uow.Products(), linesOf(*order)); err != nil {
		return err
	}

	return uow.Orders().UpdateStatus(ctx, order.ID, order.Status, order.UpdatedAt)
}
