package app

import (
	"context"
	"log/slog"

	"github.com/dejobratic/stockledger/internal/identity"
	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/app/commands"
	"github.com/dejobratic/stockledger/internal/orders/app/queries"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/metrics"
	"github.com/dejobratic/stockledger/internal/orders/ports"
)

// Service bundles use cases for handling orders via the API.
type Service struct {
	idemStore ports.IdempotencyStore

	placeOrder   commands.CommandHandler[commands.PlaceOrderCommand]
	cancelOrder  commands.CommandHandler[commands.CancelOrderCommand]
	updateStatus commands.CommandHandler[commands.UpdateStatusCommand]

	getOrder   *queries.GetOrderQueryHandler
	listOrders *queries.ListOrdersQueryHandler
}

// NewService wires required dependencies.
func NewService(
	tx ports.Transactor,
	ledger *inventory.Ledger,
	events ports.EventBus,
	idem ports.IdempotencyStore,
	policy domain.Policy,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		idemStore: idem,
		placeOrder: commands.NewObservableCommandHandler(
			commands.NewPlaceOrderCommandHandler(tx, ledger, events, logger),
			"PlaceOrder", logger, metrics,
		),
		cancelOrder: commands.NewObservableCommandHandler(
			commands.NewCancelOrderCommandHandler(tx, ledger, events, policy, logger),
			"CancelOrder", logger, metrics,
		),
		updateStatus: commands.NewObservableCommandHandler(
			commands.NewUpdateStatusCommandHandler(tx, ledger, events, logger),
			"UpdateOrderStatus", logger, metrics,
		),
		getOrder:   queries.NewGetOrderQueryHandler(tx),
		listOrders: queries.NewListOrdersQueryHandler(tx),
	}
}

// PlaceOrderInput captures payload for placing an order.
type PlaceOrderInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// PlaceOrder reserves stock and records a pending order for the caller.
func (s *Service) PlaceOrder(ctx context.Context, caller identity.Identity, input PlaceOrderInput) (*domain.Order, error) {
	return s.placeOrder.Handle(ctx, commands.PlaceOrderCommand{
		UserID:    caller.UserID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
	})
}

// CancelOrder cancels one of the caller's own orders and returns its stock.
func (s *Service) CancelOrder(ctx context.Context, caller identity.Identity, id int64) (*domain.Order, error) {
	return s.cancelOrder.Handle(ctx, commands.CancelOrderCommand{
		OrderID:          id,
		RequestingUserID: caller.UserID,
	})
}

// UpdateStatus applies a manager status change. Unknown status names are
// rejected as validation errors once the caller is known to be a manager.
func (s *Service) UpdateStatus(ctx context.Context, caller identity.Identity, id int64, status string) (*domain.Order, error) {
	next, err := domain.ParseStatus(status)
	if err != nil {
		next = domain.OrderStatus(status)
	}
	return s.updateStatus.Handle(ctx, commands.UpdateStatusCommand{
		OrderID:   id,
		NewStatus: next,
		Actor:     caller,
	})
}

// GetOrder retrieves an order visible to the caller.
func (s *Service) GetOrder(ctx context.Context, caller identity.Identity, id int64) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{OrderID: id, Caller: caller})
}

// ListOrders returns the caller's orders, or every order for managers.
func (s *Service) ListOrders(ctx context.Context, query queries.ListOrdersQuery) ([]domain.Order, error) {
	return s.listOrders.Handle(ctx, query)
}

// ClaimIdempotencyKey reserves key for a placement. When another request
// already holds the key its entry is returned instead.
func (s *Service) ClaimIdempotencyKey(ctx context.Context, key, fingerprint string) (*ports.StoredResponse, bool, error) {
	existing, claimed, err := s.idemStore.Claim(ctx, key, fingerprint)
	if err != nil {
		return nil, false, ports.WrapPersistence(err)
	}
	return existing, claimed, nil
}

// SaveIdempotentResponse completes a claimed key with the response to replay.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// ReleaseIdempotencyKey drops a claim whose placement failed.
func (s *Service) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return s.idemStore.Release(ctx, key)
}
