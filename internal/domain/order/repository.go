package order

import "context"

type Repository interface {
	// Insert fails with ErrConflict when the order id or payment id already exists.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	// UpdateStatus persists order only if the stored status still equals from; otherwise ErrConflict.
	UpdateStatus(ctx context.Context, order *Order, from Status) error
}
