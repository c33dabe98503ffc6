package returns

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
)

var staffScopes = []access.Scope{
	access.ScopeReturnsView,
	access.ScopeReturnsPickup,
	access.ScopeReturnsReceive,
	access.ScopeReturnsQC,
	access.ScopeReturnsRefund,
}

type Queries struct {
	repo domain.Repository
}

func NewQueries(repo domain.Repository) *Queries {
	return &Queries{repo: repo}
}

// Get returns the request to its owner or to staff holding any returns scope.
func (q *Queries) Get(ctx context.Context, id string) (*domain.Request, error) {
	actor, ok := access.PrincipalFrom(ctx)
	if !ok {
		return nil, access.ErrUnauthorized
	}
	r, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	if r.UserID == actor.UserID {
		return r, nil
	}
	for _, s := range staffScopes {
		if actor.Can(s) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: return request %s", access.ErrForbidden, id)
}
