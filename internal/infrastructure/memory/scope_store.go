package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
)

type ScopeStore struct {
	mu     sync.RWMutex
	scopes map[string][]domain.Scope
}

func NewScopeStore() *ScopeStore {
	return &ScopeStore{scopes: make(map[string][]domain.Scope)}
}

func (s *ScopeStore) Scopes(ctx context.Context, userID string) ([]domain.Scope, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Scope{}, s.scopes[userID]...), nil
}

func (s *ScopeStore) ReplaceScopes(ctx context.Context, userID string, scopes []domain.Scope) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(scopes) == 0 {
		delete(s.scopes, userID)
		return nil
	}
	s.scopes[userID] = append([]domain.Scope(nil), scopes...)
	return nil
}
