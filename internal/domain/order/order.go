package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: conflict")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("order: unit price must be zero or greater")
	ErrNoItems         = errors.New("order: at least one line item is required")
	ErrMissingPayment  = errors.New("order: payment id is required")
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusPacking    Status = "packing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// LineStatus is the fulfillment sub-state of a single line.
type LineStatus string

const (
	LinePending   LineStatus = "pending"
	LinePacked    LineStatus = "packed"
	LineShipped   LineStatus = "shipped"
	LineDelivered LineStatus = "delivered"
	LineCancelled LineStatus = "cancelled"
)

type LineItem struct {
	ID        string     `json:"id"`
	ProductID string     `json:"product_id"`
	Variant   string     `json:"variant"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	UnitPrice int64      `json:"unit_price"`
	Status    LineStatus `json:"status"`
}

// Total is the frozen line total.
func (l LineItem) Total() int64 { return l.UnitPrice * int64(l.Quantity) }

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

type Order struct {
	ID        string
	UserID    string
	Items     []LineItem
	Shipping  Address
	PaymentID string
	Totals    Totals
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds a Processing order. Totals are computed here, once, and never recomputed.
func New(id, userID, paymentID string, items []LineItem, shipping Address, pricing Pricing) (*Order, error) {
	if paymentID == "" {
		return nil, ErrMissingPayment
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	lines := make([]LineItem, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice < 0 {
			return nil, ErrInvalidPrice
		}
		it.Status = LinePending
		lines[i] = it
	}

	now := time.Now().UTC()
	return &Order{
		ID:        id,
		UserID:    userID,
		Items:     lines,
		Shipping:  shipping,
		PaymentID: paymentID,
		Totals:    pricing.Compute(lines),
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Line returns the line item with the given id.
func (o *Order) Line(id string) (LineItem, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return LineItem{}, false
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]LineItem(nil), o.Items...)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
