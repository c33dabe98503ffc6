package audit

import (
	"context"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
)

const maxListLimit = 500

// Query reads the trail back for reconstruction. It is never on a write path.
type Query struct {
	store domaudit.Store
}

func NewQuery(store domaudit.Store) *Query {
	return &Query{store: store}
}

func (q *Query) List(ctx context.Context, actor access.Principal, f domaudit.Filter) ([]domaudit.Entry, error) {
	if err := actor.Require(access.ScopeAuditView); err != nil {
		return nil, err
	}
	if f.TargetType == "" && f.TargetID == "" && f.CorrelationID == "" {
		return nil, application.Validation("a target or correlation id filter is required")
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return q.store.List(ctx, f)
}
