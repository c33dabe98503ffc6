package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllows(t *testing.T) {
	tests := []struct {
		name     string
		scopes   ScopeSet
		role     Role
		required Scope
		want     bool
	}{
		{"admin bypass without scopes", nil, RoleAdmin, ScopeReturnsRefund, true},
		{"staff with scope", NewScopeSet(ScopeOrdersPack), RoleStaff, ScopeOrdersPack, true},
		{"staff without scope", NewScopeSet(ScopeOrdersPack), RoleStaff, ScopeOrdersShip, false},
		{"customer with granted scope", NewScopeSet(ScopeReturnsQC), RoleCustomer, ScopeReturnsQC, true},
		{"empty set", ScopeSet{}, RoleStaff, ScopeAuditView, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allows(tt.scopes, tt.role, tt.required))
		})
	}
}

func TestParseScopes(t *testing.T) {
	got, err := ParseScopes([]string{"orders.action.ship", "orders.action.pack", "orders.action.ship"})
	require.NoError(t, err)
	assert.Equal(t, []Scope{ScopeOrdersPack, ScopeOrdersShip}, got)

	_, err = ParseScopes([]string{"orders.action.teleport"})
	assert.ErrorIs(t, err, ErrUnknownScope)
}

func TestPrincipalRequire(t *testing.T) {
	assert.ErrorIs(t, Principal{}.Require(ScopeOrdersView), ErrUnauthorized)

	staff := Principal{UserID: "u1", Role: RoleStaff, Scopes: NewScopeSet(ScopeOrdersView)}
	assert.NoError(t, staff.Require(ScopeOrdersView))
	assert.ErrorIs(t, staff.Require(ScopeUsersManage), ErrForbidden)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1", Role: RoleCustomer})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
}
