package queries

import (
	"context"
	"fmt"

	"github.com/dejobratic/stockledger/internal/identity"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	OrderID int64
	Caller  identity.Identity
}

// GetOrderQueryHandler executes GetOrderQuery. Customers only see their own
// orders; anything else is reported as not found.
type GetOrderQueryHandler struct {
	tx ports.Transactor
}

func NewGetOrderQueryHandler(tx ports.Transactor) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{tx: tx}
}

func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var order *domain.Order
	err := h.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		var err error
		order, err = uow.Orders().GetByID(ctx, query.OrderID)
		return err
	})
	if err != nil {
		return nil, ports.WrapPersistence(err)
	}

	if !query.Caller.IsManager() && order.UserID != query.Caller.UserID {
		return nil, domain.ErrNotFound
	}

	return order, nil
}

func (q GetOrderQuery) Validate() error {
	if q.OrderID <= 0 {
		return fmt.Errorf("%w: order_id is required", domain.ErrValidation)
	}
	return nil
}
