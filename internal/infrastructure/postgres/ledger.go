package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
)

// Ledger stores variant quantities in the stock table. Reserve is a single conditional UPDATE;
// the quantity >= n predicate and the decrement are one statement.
type Ledger struct {
	db *pgxpool.Pool
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Reserve(ctx context.Context, key domain.VariantKey, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	tag, err := l.db.Exec(ctx, `
		UPDATE stock SET quantity = quantity - $3
		WHERE product_id = $1 AND variant = $2 AND quantity >= $3`,
		key.ProductID, key.Variant, quantity,
	)
	if err != nil {
		return fmt.Errorf("postgres ledger: reserve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOutOfStock
	}
	return nil
}

func (l *Ledger) Release(ctx context.Context, key domain.VariantKey, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	_, err := l.db.Exec(ctx, `
		INSERT INTO stock (product_id, variant, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (product_id, variant) DO UPDATE SET quantity = stock.quantity + EXCLUDED.quantity`,
		key.ProductID, key.Variant, quantity,
	)
	if err != nil {
		return fmt.Errorf("postgres ledger: release: %w", err)
	}
	return nil
}

func (l *Ledger) Available(ctx context.Context, key domain.VariantKey) (int, error) {
	var qty int
	err := l.db.QueryRow(ctx,
		`SELECT quantity FROM stock WHERE product_id = $1 AND variant = $2`,
		key.ProductID, key.Variant,
	).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres ledger: available: %w", err)
	}
	return qty, nil
}

func (l *Ledger) Seed(ctx context.Context, key domain.VariantKey, quantity int) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO stock (product_id, variant, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (product_id, variant) DO UPDATE SET quantity = EXCLUDED.quantity`,
		key.ProductID, key.Variant, quantity,
	)
	if isCheckViolation(err) {
		return domain.ErrInvalidQuantity
	}
	if err != nil {
		return fmt.Errorf("postgres ledger: seed: %w", err)
	}
	return nil
}
