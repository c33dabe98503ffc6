package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
)

type Catalog struct {
	db *pgxpool.Pool
}

func NewCatalog(db *pgxpool.Pool) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Price(ctx context.Context, productID, variant string) (catalog.Price, error) {
	p := catalog.Price{ProductID: productID, Variant: variant}
	err := c.db.QueryRow(ctx,
		`SELECT name, unit_price FROM catalog_prices WHERE product_id = $1 AND variant = $2`,
		productID, variant,
	).Scan(&p.Name, &p.UnitPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Price{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Price{}, fmt.Errorf("postgres catalog: price: %w", err)
	}
	return p, nil
}

func (c *Catalog) Put(ctx context.Context, p catalog.Price) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO catalog_prices (product_id, variant, name, unit_price) VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, variant) DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price`,
		p.ProductID, p.Variant, p.Name, p.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("postgres catalog: put: %w", err)
	}
	return nil
}
