package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// transitions is the complete lifecycle graph. Any edge not listed is rejected.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
}

// ParseStatus converts user input into a known status.
func ParseStatus(value string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := transitions[status]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, value)
	}
	return status, nil
}

// IsTerminal indicates whether no further transition is permitted from s.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is an edge of the lifecycle graph.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is a single product line of an order. UnitPrice and ProductName are
// snapshots taken when the stock was reserved.
type OrderItem struct {
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Subtotal returns UnitPrice * Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a purchase placed by a user.
type Order struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	OrderDate time.Time   `json:"order_date"`
	Status    OrderStatus `json:"status"`
	Items     []OrderItem `json:"items"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if o.UserID <= 0 {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	seen := make(map[int64]struct{}, len(o.Items))
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("%w: duplicate line for product %d", ErrValidation, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// Total sums the item subtotals.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// TransitionTo moves the order to next if the edge exists.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = at
	return nil
}
