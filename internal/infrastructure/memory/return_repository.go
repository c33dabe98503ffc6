package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
)

type ReturnRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.Request
}

func NewReturnRepository() *ReturnRepository {
	return &ReturnRepository{requests: make(map[string]*domain.Request)}
}

func (r *ReturnRepository) Insert(ctx context.Context, req *domain.Request) error {
	_ = ctx
	if req == nil || req.ID == "" {
		return fmt.Errorf("return repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.ID]; exists {
		return domain.ErrConflict
	}
	r.requests[req.ID] = req.Clone()
	return nil
}

func (r *ReturnRepository) Get(ctx context.Context, id string) (*domain.Request, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return req.Clone(), nil
}

func (r *ReturnRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Request, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Request
	for _, req := range r.requests {
		if req.OrderID == orderID {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ReturnRepository) UpdateStatus(ctx context.Context, req *domain.Request, from domain.Status) error {
	_ = ctx
	if req == nil || req.ID == "" {
		return fmt.Errorf("return repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.requests[req.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Status != from {
		return domain.ErrConflict
	}

	next := stored.Clone()
	next.Status = req.Status
	next.QCNotes = req.QCNotes
	next.RejectionReason = req.RejectionReason
	next.UpdatedAt = req.UpdatedAt
	r.requests[req.ID] = next
	return nil
}
