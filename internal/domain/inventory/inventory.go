package inventory

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidQuantity = errors.New("inventory: quantity must be greater than zero")
	// ErrOutOfStock is returned when the conditional decrement does not match.
	ErrOutOfStock = errors.New("inventory: out of stock")
	ErrInvalidKey = errors.New("inventory: product id and variant are required")
)

// VariantKey identifies a single stock count: one product in one size/option.
type VariantKey struct {
	ProductID string
	Variant   string
}

func NewVariantKey(productID, variant string) (VariantKey, error) {
	k := VariantKey{ProductID: strings.TrimSpace(productID), Variant: strings.TrimSpace(variant)}
	if k.ProductID == "" || k.Variant == "" {
		return VariantKey{}, ErrInvalidKey
	}
	return k, nil
}

func (k VariantKey) String() string { return k.ProductID + ":" + k.Variant }

// Ledger owns available quantities. Reserve is a single atomic conditional decrement;
// Release is its compensating increment. Neither deduplicates calls.
type Ledger interface {
	Reserve(ctx context.Context, key VariantKey, quantity int) error
	Release(ctx context.Context, key VariantKey, quantity int) error
	Available(ctx context.Context, key VariantKey) (int, error)
}

// Seeder sets absolute quantities. It exists for bootstrapping stock from the catalog
// feed; business flows go through Ledger only.
type Seeder interface {
	Seed(ctx context.Context, key VariantKey, quantity int) error
}
