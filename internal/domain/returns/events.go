package returns

import "time"

type RequestedEvent struct {
	ReturnID     string
	OrderID      string
	UserID       string
	RefundAmount int64
	OccurredAt   time.Time
}

func (RequestedEvent) EventName() string { return "return.requested" }

func NewRequestedEvent(r *Request) RequestedEvent {
	return RequestedEvent{
		ReturnID:     r.ID,
		OrderID:      r.OrderID,
		UserID:       r.UserID,
		RefundAmount: r.RefundAmount,
		OccurredAt:   time.Now().UTC(),
	}
}

type StatusChangedEvent struct {
	ReturnID   string
	OrderID    string
	UserID     string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (StatusChangedEvent) EventName() string { return "return.status_changed" }

func NewStatusChangedEvent(r *Request, from Status) StatusChangedEvent {
	return StatusChangedEvent{
		ReturnID:   r.ID,
		OrderID:    r.OrderID,
		UserID:     r.UserID,
		From:       from,
		To:         r.Status,
		OccurredAt: time.Now().UTC(),
	}
}
