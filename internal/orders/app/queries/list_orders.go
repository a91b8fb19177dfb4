package queries

import (
	"context"
	"fmt"

	"github.com/dejobratic/stockledger/internal/identity"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
)

const (
	maxPageSize = 100
	// maxPage keeps (page-1)*pageSize far from integer overflow.
	maxPage = 100_000
)

type ListOrdersQuery struct {
	Caller   identity.Identity
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

type ListOrdersQueryHandler struct {
	tx ports.Transactor
}

func NewListOrdersQueryHandler(tx ports.Transactor) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{tx: tx}
}

// Handle lists orders visible to the caller. Managers see every order and get
// the pending queue oldest first; customers are restricted to their own.
func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	filter := ports.ListFilter{
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Caller.IsManager() {
		filter.OldestFirst = query.Status != nil && *query.Status == domain.StatusPending
	} else {
		userID := query.Caller.UserID
		filter.UserID = &userID
	}

	var orders []domain.Order
	err := h.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		var err error
		orders, err = uow.Orders().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, ports.WrapPersistence(err)
	}

	return orders, nil
}

func (q ListOrdersQuery) Validate() error {
	if q.Page < 0 || q.Page > maxPage {
		return fmt.Errorf("%w: page must be between 1 and %d", domain.ErrValidation, maxPage)
	}
	if q.PageSize < 0 || q.PageSize > maxPageSize {
		return fmt.Errorf("%w: page_size must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}
	return nil
}
