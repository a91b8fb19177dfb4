package kafka

import (
	"time"

	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/google/uuid"
)

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderCancelled     = "order.cancelled"
	TopicOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the JSON envelope written to every lifecycle topic.
type OrderEvent struct {
	EventID        string      `json:"event_id"`
	EventType      string      `json:"event_type"`
	OccurredAt     time.Time   `json:"occurred_at"`
	OrderID        int64       `json:"order_id"`
	UserID         int64       `json:"user_id"`
	Status         string      `json:"status"`
	PreviousStatus string      `json:"previous_status,omitempty"`
	Total          string      `json:"total"`
	Items          []EventItem `json:"items"`
}

type EventItem struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

func newOrderEvent(eventType string, order domain.Order, occurredAt time.Time) OrderEvent {
	items := make([]EventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, EventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}

	return OrderEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: occurredAt,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Total:      order.Total().StringFixed(2),
		Items:      items,
	}
}
