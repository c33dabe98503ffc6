package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
)

type ScopeStore struct {
	db *pgxpool.Pool
}

func NewScopeStore(db *pgxpool.Pool) *ScopeStore {
	return &ScopeStore{db: db}
}

func (s *ScopeStore) Scopes(ctx context.Context, userID string) ([]access.Scope, error) {
	rows, err := s.db.Query(ctx, `SELECT scope FROM user_scopes WHERE user_id = $1 ORDER BY scope`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres scopes: list: %w", err)
	}
	scopes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (access.Scope, error) {
		var raw string
		err := row.Scan(&raw)
		return access.Scope(raw), err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres scopes: list: %w", err)
	}
	if scopes == nil {
		scopes = []access.Scope{}
	}
	return scopes, nil
}

// ReplaceScopes swaps the full assignment in one transaction.
func (s *ScopeStore) ReplaceScopes(ctx context.Context, userID string, scopes []access.Scope) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_scopes WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, scope := range scopes {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_scopes (user_id, scope) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				userID, string(scope),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres scopes: replace: %w", err)
	}
	return nil
}
