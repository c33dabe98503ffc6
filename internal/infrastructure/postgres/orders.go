package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
)

const orderColumns = `id, user_id, payment_id, status, items, shipping, subtotal, tax, shipping_fee, total, created_at, updated_at`

// OrderRepository persists orders. The payment_id unique constraint is what makes a repeated
// confirmation collapse onto one order.
type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("postgres orders: encode items: %w", err)
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("postgres orders: encode shipping: %w", err)
	}

	_, err = r.db.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.UserID, o.PaymentID, string(o.Status), items, shipping,
		o.Totals.Subtotal, o.Totals.Tax, o.Totals.Shipping, o.Totals.Total,
		o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("postgres orders: insert: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
	return scanOrder(row)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres orders: list: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres orders: list: %w", err)
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order, from domain.Status) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("postgres orders: encode items: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $2, items = $3, updated_at = $4
		WHERE id = $1 AND status = $5`,
		o.ID, string(o.Status), items, o.UpdatedAt, string(from),
	)
	if err != nil {
		return fmt.Errorf("postgres orders: update status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres orders: update status: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o        domain.Order
		status   string
		items    []byte
		shipping []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.PaymentID, &status, &items, &shipping,
		&o.Totals.Subtotal, &o.Totals.Tax, &o.Totals.Shipping, &o.Totals.Total,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres orders: scan: %w", err)
	}
	o.Status = domain.Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("postgres orders: decode items: %w", err)
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, fmt.Errorf("postgres orders: decode shipping: %w", err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}
