package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
)

// AuditStore is an append-only slice; List returns entries in append order.
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.Entry
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(ctx context.Context, e domain.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	return nil
}

func (s *AuditStore) List(ctx context.Context, f domain.Filter) ([]domain.Entry, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Entry
	for _, e := range s.entries {
		if !f.Matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
