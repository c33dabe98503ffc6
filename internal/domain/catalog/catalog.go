package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("catalog: variant not found")

// Price is the sellable snapshot of one product variant, in minor currency units.
type Price struct {
	ProductID string
	Variant   string
	Name      string
	UnitPrice int64
}

// Catalog resolves current prices. Catalog CRUD lives outside this service.
type Catalog interface {
	Price(ctx context.Context, productID, variant string) (Price, error)
}

// Writer loads prices from the catalog feed.
type Writer interface {
	Put(ctx context.Context, p Price) error
}
