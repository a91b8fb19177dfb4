// Package catalog implements the manager-facing product operations that share
// the inventory ledger with order placement.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/stockledger/internal/identity"
	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/dejobratic/stockledger/internal/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type Service struct {
	tx     ports.Transactor
	ledger *inventory.Ledger
	logger *slog.Logger
	now    func() time.Time
}

func NewService(tx ports.Transactor, ledger *inventory.Ledger, logger *slog.Logger) *Service {
	return &Service{
		tx:     tx,
		ledger: ledger,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateProductInput captures payload for adding a product to the catalog.
type CreateProductInput struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	PurchaseCount int             `json:"purchase_count"`
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*inventory.Product, error) {
	var product *inventory.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		var err error
		product, err = uow.Products().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, ports.WrapPersistence(err)
	}
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, caller identity.Identity, input CreateProductInput) (*inventory.Product, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreateProduct")
	defer span.End()

	if err := requireManager(caller); err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	now := s.now()
	product := inventory.Product{
		Name:              input.Name,
		Description:       input.Description,
		Price:             input.Price,
		Quantity:          input.Quantity,
		PurchaseCount:     input.PurchaseCount,
		LastPurchasedDate: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := product.Validate(); err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrValidation, err)
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		return uow.Products().Create(ctx, &product)
	})
	if err != nil {
		err = ports.WrapPersistence(err)
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int64("product.id", product.ID))
	telemetry.SetSpanSuccess(span)
	s.logger.InfoContext(ctx, "product created", "product_id", product.ID, "quantity", product.Quantity)
	return &product, nil
}

// AdjustStock applies a manual correction of delta units under the product lock.
func (s *Service) AdjustStock(ctx context.Context, caller identity.Identity, id int64, delta int) (*inventory.Product, error) {
	ctx, span := telemetry.StartSpan(ctx, "AdjustStock")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.Int64("product.id", id),
		attribute.Int("stock.delta", delta),
	)

	if err := requireManager(caller); err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}
	if delta == 0 {
		err := fmt.Errorf("%w: delta must not be zero", domain.ErrValidation)
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	var product *inventory.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		var err error
		product, err = s.ledger.Adjust(ctx, uow.Products(), id, delta)
		return err
	})
	if err != nil {
		err = ports.WrapPersistence(err)
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	s.logger.InfoContext(ctx, "stock adjusted", "product_id", id, "delta", delta, "quantity", product.Quantity)
	return product, nil
}

// DeleteProduct removes a product that no order references.
func (s *Service) DeleteProduct(ctx context.Context, caller identity.Identity, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, "DeleteProduct")
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.Int64("product.id", id))

	if err := requireManager(caller); err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		if _, err := uow.Products().GetForUpdate(ctx, id); err != nil {
			return err
		}
		used, err := uow.Products().HasOrderHistory(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: product %d is referenced by orders", inventory.ErrProductInUse, id)
		}
		return uow.Products().Delete(ctx, id)
	})
	if err != nil {
		err = ports.WrapPersistence(err)
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	s.logger.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

func requireManager(caller identity.Identity) error {
	if !caller.IsManager() {
		return fmt.Errorf("%w: manager role required", domain.ErrForbidden)
	}
	return nil
}
