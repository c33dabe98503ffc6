package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
)

// AuditStore appends to audit_log. A trigger rejects UPDATE and DELETE on the table,
// so the store has no path that mutates an entry.
type AuditStore struct {
	db *pgxpool.Pool
}

func NewAuditStore(db *pgxpool.Pool) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, e domain.Entry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (id, action, actor, target_type, target_id, before, after, correlation_id, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Action, e.Actor, e.TargetType, e.TargetID,
		nullJSON(e.Before), nullJSON(e.After),
		e.CorrelationID, e.IP, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres audit: append: %w", err)
	}
	return nil
}

func (s *AuditStore) List(ctx context.Context, f domain.Filter) ([]domain.Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	add("target_type", f.TargetType)
	add("target_id", f.TargetID)
	add("correlation_id", f.CorrelationID)

	query := `SELECT id, action, actor, target_type, target_id, before, after, correlation_id, ip, user_agent, created_at FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres audit: list: %w", err)
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var (
			e             domain.Entry
			before, after []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.TargetType, &e.TargetID, &before, &after,
			&e.CorrelationID, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres audit: scan: %w", err)
		}
		e.Before = before
		e.After = after
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres audit: list: %w", err)
	}
	return out, nil
}

// nullJSON stores absent snapshots as SQL NULL rather than an empty jsonb value.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
