package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	accessService        = "access-service"
	useCaseScopesReplace = "user.scopes.replace"
)

type scopeSnapshot struct {
	Scopes []domain.Scope `json:"scopes"`
}

// ScopeAdmin reads and replaces per-user scope assignments.
type ScopeAdmin struct {
	store domain.ScopeStore
	audit *appaudit.Writer
	in    application.Instruments
}

func NewScopeAdmin(store domain.ScopeStore, audit *appaudit.Writer, tel observability.Observability) *ScopeAdmin {
	return &ScopeAdmin{
		store: store,
		audit: audit,
		in:    application.NewInstruments(tel, accessService),
	}
}

// Get returns userID's scopes. Callers may always read their own.
func (a *ScopeAdmin) Get(ctx context.Context, userID string) ([]domain.Scope, error) {
	actor, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if actor.UserID != userID {
		if err := actor.Require(domain.ScopeUsersManage); err != nil {
			return nil, err
		}
	}
	scopes, err := a.store.Scopes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("access: read scopes: %w", err)
	}
	return scopes, nil
}

// Assignable lists every scope an administrator may grant.
func (a *ScopeAdmin) Assignable(ctx context.Context) ([]domain.Scope, error) {
	actor, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := actor.Require(domain.ScopeUsersManage); err != nil {
		return nil, err
	}
	return domain.AllScopes(), nil
}

// Replace swaps userID's scope set for raw, rejecting anything not enumerated.
func (a *ScopeAdmin) Replace(ctx context.Context, userID string, raw []string) (_ []domain.Scope, err error) {
	ctx, run := a.in.Begin(ctx, useCaseScopesReplace, "ReplaceScopes",
		attribute.String("user.id", userID),
		attribute.Int("scopes.count", len(raw)),
	)
	defer func() { run.End(err) }()

	actor, ok := domain.PrincipalFrom(ctx)
	if !ok {
		run.Fail("UNAUTHORIZED")
		return nil, domain.ErrUnauthorized
	}
	if err := actor.Require(domain.ScopeUsersManage); err != nil {
		run.Fail("FORBIDDEN")
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		run.Fail("USER_ID_REQUIRED")
		return nil, application.Validation("user id is required")
	}
	scopes, err := domain.ParseScopes(raw)
	if err != nil {
		run.Fail("UNKNOWN_SCOPE")
		if errors.Is(err, domain.ErrUnknownScope) {
			return nil, application.ValidationErr(err)
		}
		return nil, err
	}

	before, err := a.store.Scopes(ctx, userID)
	if err != nil {
		run.Fail("SCOPES_READ_FAILED")
		return nil, fmt.Errorf("access: read scopes: %w", err)
	}
	if err := a.store.ReplaceScopes(ctx, userID, scopes); err != nil {
		run.Fail("SCOPES_WRITE_FAILED")
		return nil, fmt.Errorf("access: replace scopes: %w", err)
	}

	a.audit.Append(ctx, appaudit.Record{
		Action:     domaudit.ActionScopesReplace,
		TargetType: domaudit.TargetUserScope,
		TargetID:   userID,
		Before:     scopeSnapshot{Scopes: before},
		After:      scopeSnapshot{Scopes: scopes},
	})
	run.Annotate(observability.F("target_user_id", userID))
	return scopes, nil
}
