package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnauthorized = errors.New("access: unauthorized")
	ErrForbidden    = errors.New("access: forbidden")
	ErrUnknownScope = errors.New("access: unknown scope")
	ErrUnknownRole  = errors.New("access: unknown role")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	// RoleAdmin bypasses every scope check.
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Scope is a fine-grained permission granted to a staff user independently of their role.
type Scope string

const (
	ScopeOrdersView    Scope = "orders.view"
	ScopeOrdersConfirm Scope = "orders.action.confirm"
	ScopeOrdersPack    Scope = "orders.action.pack"
	ScopeOrdersShip    Scope = "orders.action.ship"
	ScopeOrdersDeliver Scope = "orders.action.deliver"
	ScopeOrdersCancel  Scope = "orders.action.cancel"

	ScopeReturnsView     Scope = "returns.view"
	ScopeReturnsPickup   Scope = "returns.action.schedule_pickup"
	ScopeReturnsReceive  Scope = "returns.action.receive"
	ScopeReturnsQC       Scope = "returns.action.qc"
	ScopeReturnsRefund   Scope = "returns.action.refund"
	ScopeUsersManage     Scope = "users.manage"
	ScopeAuditView       Scope = "audit.view"
	ScopeInventoryManage Scope = "inventory.manage"
)

var knownScopes = map[Scope]struct{}{
	ScopeOrdersView:      {},
	ScopeOrdersConfirm:   {},
	ScopeOrdersPack:      {},
	ScopeOrdersShip:      {},
	ScopeOrdersDeliver:   {},
	ScopeOrdersCancel:    {},
	ScopeReturnsView:     {},
	ScopeReturnsPickup:   {},
	ScopeReturnsReceive:  {},
	ScopeReturnsQC:       {},
	ScopeReturnsRefund:   {},
	ScopeUsersManage:     {},
	ScopeAuditView:       {},
	ScopeInventoryManage: {},
}

// Known reports whether s is one of the enumerated scopes.
func Known(s Scope) bool {
	_, ok := knownScopes[s]
	return ok
}

// AllScopes lists every enumerated scope in lexical order.
func AllScopes() []Scope {
	out := make([]Scope, 0, len(knownScopes))
	for s := range knownScopes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseScopes converts raw strings into scopes, rejecting anything not enumerated.
func ParseScopes(raw []string) ([]Scope, error) {
	out := make([]Scope, 0, len(raw))
	seen := make(map[Scope]struct{}, len(raw))
	for _, r := range raw {
		s := Scope(r)
		if !Known(s) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScope, r)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ScopeSet is the resolved set of scopes held by a caller.
type ScopeSet map[Scope]struct{}

func NewScopeSet(scopes ...Scope) ScopeSet {
	set := make(ScopeSet, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

func (s ScopeSet) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// Allows is the permission decision: admin always passes, everyone else needs the scope.
func Allows(scopes ScopeSet, role Role, required Scope) bool {
	if role == RoleAdmin {
		return true
	}
	return scopes.Has(required)
}

// Principal is an authenticated caller with its resolved role and scopes.
type Principal struct {
	UserID string
	Role   Role
	Scopes ScopeSet
}

func (p Principal) Can(required Scope) bool {
	return Allows(p.Scopes, p.Role, required)
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Require returns ErrForbidden unless p holds the scope.
func (p Principal) Require(required Scope) error {
	if p.UserID == "" {
		return ErrUnauthorized
	}
	if !p.Can(required) {
		return fmt.Errorf("%w: missing scope %s", ErrForbidden, required)
	}
	return nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// ScopeStore persists per-user scope assignments. Editing is an admin concern; the engine
// reads on every privileged request.
type ScopeStore interface {
	Scopes(ctx context.Context, userID string) ([]Scope, error)
	ReplaceScopes(ctx context.Context, userID string, scopes []Scope) error
}
