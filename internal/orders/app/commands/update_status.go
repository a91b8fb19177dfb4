package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/stockledger/internal/identity"
	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"go.opentelemetry.io/otel/attribute"
)

// UpdateStatusCommand is a manager moving an order along its lifecycle.
type UpdateStatusCommand struct {
	OrderID   int64
	NewStatus domain.OrderStatus
	Actor     identity.Identity
}

func (c UpdateStatusCommand) Operation() string { return OpUpdateStatus }

func (c UpdateStatusCommand) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("order.id", c.OrderID),
		attribute.String("order.new_status", string(c.NewStatus)),
		attribute.String("actor.role", string(c.Actor.Role)),
	}
}

func (c UpdateStatusCommand) Validate() error {
	if c.OrderID <= 0 {
		return fmt.Errorf("%w: order_id is required", domain.ErrValidation)
	}
	if _, err := domain.ParseStatus(string(c.NewStatus)); err != nil {
		return err
	}
	return nil
}

type UpdateStatusCommandHandler struct {
	tx     ports.Transactor
	ledger *inventory.Ledger
	events ports.EventBus
	logger *slog.Logger
	now    func() time.Time
}

func NewUpdateStatusCommandHandler(
	tx ports.Transactor,
	ledger *inventory.Ledger,
	events ports.EventBus,
	logger *slog.Logger,
) *UpdateStatusCommandHandler {
	return &UpdateStatusCommandHandler{
		tx:     tx,
		ledger: ledger,
		events: events,
		logger: logger,
		now:    utcNow,
	}
}

func (h *UpdateStatusCommandHandler) Handle(ctx context.Context, cmd UpdateStatusCommand) (*domain.Order, error) {
	if !cmd.Actor.IsManager() {
		return nil, fmt.Errorf("%w: manager role required", domain.ErrForbidden)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		order *domain.Order
		from  domain.OrderStatus
	)
	err := h.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		var err error
		order, err = uow.Orders().GetForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		from = order.Status

		if cmd.NewStatus == domain.StatusCancelled {
			return cancelWithinTx(ctx, uow, h.ledger, order, h.now())
		}

		if err := order.TransitionTo(cmd.NewStatus, h.now()); err != nil {
			return err
		}
		return uow.Orders().UpdateStatus(ctx, order.ID, order.Status, order.UpdatedAt)
	})
	if err != nil {
		return nil, ports.WrapPersistence(err)
	}

	if order.Status == domain.StatusCancelled {
		err = h.events.PublishOrderCancelled(ctx, *order)
	} else {
		err = h.events.PublishOrderStatusChanged(ctx, *order, from)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "order status updated but failed to publish event", "order_id", order.ID, "error", err)
	}

	return order, nil
}
