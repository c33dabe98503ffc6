package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
)

const returnColumns = `id, order_id, user_id, items, refund_amount, status, qc_notes, rejection_reason, created_at, updated_at`

type ReturnRepository struct {
	db *pgxpool.Pool
}

func NewReturnRepository(db *pgxpool.Pool) *ReturnRepository {
	return &ReturnRepository{db: db}
}

func (r *ReturnRepository) Insert(ctx context.Context, req *domain.Request) error {
	items, err := json.Marshal(req.Items)
	if err != nil {
		return fmt.Errorf("postgres returns: encode items: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO return_requests (`+returnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.OrderID, req.UserID, items, req.RefundAmount, string(req.Status),
		req.QCNotes, req.RejectionReason, req.CreatedAt, req.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("postgres returns: insert: %w", err)
	}
	return nil
}

func (r *ReturnRepository) Get(ctx context.Context, id string) (*domain.Request, error) {
	return scanReturn(r.db.QueryRow(ctx, `SELECT `+returnColumns+` FROM return_requests WHERE id = $1`, id))
}

func (r *ReturnRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Request, error) {
	rows, err := r.db.Query(ctx, `SELECT `+returnColumns+` FROM return_requests WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres returns: list: %w", err)
	}
	defer rows.Close()

	var out []*domain.Request
	for rows.Next() {
		req, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres returns: list: %w", err)
	}
	return out, nil
}

func (r *ReturnRepository) UpdateStatus(ctx context.Context, req *domain.Request, from domain.Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE return_requests
		SET status = $2, qc_notes = $3, rejection_reason = $4, updated_at = $5
		WHERE id = $1 AND status = $6`,
		req.ID, string(req.Status), req.QCNotes, req.RejectionReason, req.UpdatedAt, string(from),
	)
	if err != nil {
		return fmt.Errorf("postgres returns: update status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM return_requests WHERE id = $1)`, req.ID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres returns: update status: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func scanReturn(row pgx.Row) (*domain.Request, error) {
	var (
		req    domain.Request
		status string
		items  []byte
	)
	err := row.Scan(&req.ID, &req.OrderID, &req.UserID, &items, &req.RefundAmount, &status,
		&req.QCNotes, &req.RejectionReason, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres returns: scan: %w", err)
	}
	req.Status = domain.Status(status)
	if err := json.Unmarshal(items, &req.Items); err != nil {
		return nil, fmt.Errorf("postgres returns: decode items: %w", err)
	}
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	return &req, nil
}
