package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
)

// Queries serves read paths. Reads carry no use-case instrumentation beyond HTTP metrics.
type Queries struct {
	repo domain.Repository
}

func NewQueries(repo domain.Repository) *Queries {
	return &Queries{repo: repo}
}

// Get returns the order to its owner or to staff holding orders.view.
func (q *Queries) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	actor, ok := access.PrincipalFrom(ctx)
	if !ok {
		return nil, access.ErrUnauthorized
	}
	o, err := q.repo.Get(ctx, orderID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	if o.UserID != actor.UserID && !actor.Can(access.ScopeOrdersView) {
		return nil, fmt.Errorf("%w: order %s", access.ErrForbidden, orderID)
	}
	return o, nil
}

// ListMine returns the caller's orders, newest first.
func (q *Queries) ListMine(ctx context.Context) ([]*domain.Order, error) {
	actor, ok := access.PrincipalFrom(ctx)
	if !ok {
		return nil, access.ErrUnauthorized
	}
	orders, err := q.repo.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return orders, nil
}
