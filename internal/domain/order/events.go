package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is emitted once an order is stored and its stock reserved.
type OrderPlacedEvent struct {
	OrderID    string
	CustomerID string
	Items      []LineItem
	Total      decimal.Decimal
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Items:      append([]LineItem(nil), o.Items...),
		Total:      o.Total(),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancellationRequestedEvent asks for an order to be cancelled after its
// stock reservation failed and the inline cancellation could not be stored.
type OrderCancellationRequestedEvent struct {
	OrderID    string
	Reason     string
	OccurredAt time.Time
}

func (OrderCancellationRequestedEvent) EventName() string { return "order.cancellation_requested" }

func NewOrderCancellationRequestedEvent(orderID, reason string) OrderCancellationRequestedEvent {
	return OrderCancellationRequestedEvent{
		OrderID:    orderID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
