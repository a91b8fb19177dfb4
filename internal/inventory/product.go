package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry together with its stock and popularity counters.
type Product struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity"`
	PurchaseCount     int             `json:"purchase_count"`
	LastPurchasedDate time.Time       `json:"last_purchased_date"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Validate ensures the product adheres to catalog constraints.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if p.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	// Prices are stored as NUMERIC(12,2).
	if !p.Price.Equal(p.Price.Round(2)) {
		return errors.New("price must have at most two decimal places")
	}
	if p.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	if p.PurchaseCount < 0 {
		return errors.New("purchase_count must not be negative")
	}
	return nil
}
