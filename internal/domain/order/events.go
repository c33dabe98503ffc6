package order

import "time"

// PlacedEvent is emitted once an order has been created in Processing.
type PlacedEvent struct {
	OrderID    string
	UserID     string
	Total      int64
	ItemCount  int
	OccurredAt time.Time
}

func (PlacedEvent) EventName() string { return "order.placed" }

func NewPlacedEvent(o *Order) PlacedEvent {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return PlacedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.Totals.Total,
		ItemCount:  count,
		OccurredAt: time.Now().UTC(),
	}
}

// StatusChangedEvent is emitted after every applied transition.
type StatusChangedEvent struct {
	OrderID    string
	UserID     string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (StatusChangedEvent) EventName() string { return "order.status_changed" }

func NewStatusChangedEvent(o *Order, from Status) StatusChangedEvent {
	return StatusChangedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		From:       from,
		To:         o.Status,
		OccurredAt: time.Now().UTC(),
	}
}
