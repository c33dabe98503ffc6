package returns

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("returns: not found")
	ErrConflict           = errors.New("returns: conflict")
	ErrInvalidTransition  = errors.New("returns: invalid state transition")
	ErrNotesRequired      = errors.New("returns: inspection notes are required to pass QC")
	ErrReasonRequired     = errors.New("returns: rejection reason is required to fail QC")
	ErrNoItems            = errors.New("returns: at least one item is required")
	ErrInvalidQuantity    = errors.New("returns: quantity must be greater than zero")
	ErrExceedsReturnable  = errors.New("returns: requested quantity exceeds returnable quantity")
	ErrOrderNotReturnable = errors.New("returns: order is not eligible for return")
)

type Status string

const (
	StatusRequested       Status = "requested"
	StatusPickupScheduled Status = "pickup_scheduled"
	StatusQCPending       Status = "qc_pending"
	StatusQCPassed        Status = "qc_passed"
	StatusQCFailed        Status = "qc_failed"
	StatusRefunded        Status = "refunded"
)

type Condition string

const (
	ConditionUnopened  Condition = "unopened"
	ConditionUsed      Condition = "used"
	ConditionDamaged   Condition = "damaged"
	ConditionDefective Condition = "defective"
)

// Item is one returned line. LineItemID references the order line; the order is not owned.
type Item struct {
	LineItemID string    `json:"line_item_id"`
	ProductID  string    `json:"product_id"`
	Variant    string    `json:"variant"`
	Quantity   int       `json:"quantity"`
	UnitPrice  int64     `json:"unit_price"`
	Reason     string    `json:"reason"`
	Condition  Condition `json:"condition"`
}

func ParseCondition(s string) (Condition, bool) {
	switch c := Condition(strings.ToLower(strings.TrimSpace(s))); c {
	case ConditionUnopened, ConditionUsed, ConditionDamaged, ConditionDefective:
		return c, true
	default:
		return "", false
	}
}

type Request struct {
	ID              string
	OrderID         string
	UserID          string
	Items           []Item
	RefundAmount    int64
	Status          Status
	QCNotes         string
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func New(id, orderID, userID string, items []Item) (*Request, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	var refund int64
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		refund += it.UnitPrice * int64(it.Quantity)
	}
	now := time.Now().UTC()
	return &Request{
		ID:           id,
		OrderID:      orderID,
		UserID:       userID,
		Items:        append([]Item(nil), items...),
		RefundAmount: refund,
		Status:       StatusRequested,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HoldsStock reports whether the request still counts against the returnable quantity.
// Rejected requests release their claim.
func (r *Request) HoldsStock() bool {
	return r.Status != StatusQCFailed
}

func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Items = append([]Item(nil), r.Items...)
	return &clone
}

// TransitionInput carries the free-text fields some transitions require.
type TransitionInput struct {
	Notes           string
	RejectionReason string
}

// ValidateFor enforces mandatory fields for the target status.
func (in TransitionInput) ValidateFor(target Status) error {
	switch target {
	case StatusQCPassed:
		if strings.TrimSpace(in.Notes) == "" {
			return ErrNotesRequired
		}
	case StatusQCFailed:
		if strings.TrimSpace(in.RejectionReason) == "" {
			return ErrReasonRequired
		}
	}
	return nil
}
