package returns

import "context"

type Repository interface {
	Insert(ctx context.Context, r *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Request, error)
	// UpdateStatus persists r only if the stored status still equals from; otherwise ErrConflict.
	UpdateStatus(ctx context.Context, r *Request, from Status) error
}
