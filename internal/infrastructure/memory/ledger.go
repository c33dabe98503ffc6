package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
)

// Ledger keeps variant quantities in process. The check and the decrement of Reserve happen
// under one mutex hold.
type Ledger struct {
	mu     sync.Mutex
	counts map[domain.VariantKey]int
}

func NewLedger() *Ledger {
	return &Ledger{counts: make(map[domain.VariantKey]int)}
}

func (l *Ledger) Reserve(ctx context.Context, key domain.VariantKey, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts[key] < quantity {
		return domain.ErrOutOfStock
	}
	l.counts[key] -= quantity
	return nil
}

func (l *Ledger) Release(ctx context.Context, key domain.VariantKey, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[key] += quantity
	return nil
}

func (l *Ledger) Available(ctx context.Context, key domain.VariantKey) (int, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.counts[key], nil
}

func (l *Ledger) Seed(ctx context.Context, key domain.VariantKey, quantity int) error {
	_ = ctx
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[key] = quantity
	return nil
}
