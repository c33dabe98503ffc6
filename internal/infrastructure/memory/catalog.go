package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
)

type Catalog struct {
	mu     sync.RWMutex
	prices map[string]domain.Price
}

func NewCatalog() *Catalog {
	return &Catalog{prices: make(map[string]domain.Price)}
}

func (c *Catalog) Price(ctx context.Context, productID, variant string) (domain.Price, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.prices[productID+":"+variant]
	if !ok {
		return domain.Price{}, domain.ErrNotFound
	}
	return p, nil
}

// Put inserts or replaces a price. Used by seeding.
func (c *Catalog) Put(ctx context.Context, p domain.Price) error {
	_ = ctx

	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices[p.ProductID+":"+p.Variant] = p
	return nil
}
