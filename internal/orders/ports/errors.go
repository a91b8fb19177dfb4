package ports

import (
	"errors"
	"fmt"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
)

var businessErrors = []error{
	domain.ErrNotFound,
	domain.ErrInvalidTransition,
	domain.ErrForbidden,
	domain.ErrValidation,
	domain.ErrPersistence,
	inventory.ErrProductNotFound,
	inventory.ErrInsufficientStock,
	inventory.ErrInvalidQuantity,
	inventory.ErrProductInUse,
}

// IsBusinessError reports whether err is one of the recoverable domain errors.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// WrapPersistence passes domain errors through and marks anything else as a
// failed unit of work.
func WrapPersistence(err error) error {
	if err == nil || IsBusinessError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
