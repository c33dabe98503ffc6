package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
)

// Claims is the bearer payload issued by the external login service.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 bearer tokens and resolves the caller's scopes from the
// ScopeStore on every request, so scope edits apply without re-issuing tokens.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	scopes access.ScopeStore
	now    func() time.Time
}

func NewJWTAuthenticator(secret, issuer string, scopes access.ScopeStore) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if scopes == nil {
		return nil, errors.New("auth: scope store is required")
	}
	return &JWTAuthenticator{secret: []byte(secret), issuer: issuer, scopes: scopes, now: time.Now}, nil
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (access.Principal, error) {
	if token == "" {
		return access.Principal{}, fmt.Errorf("%w: missing bearer token", access.ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return access.Principal{}, fmt.Errorf("%w: %v", access.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return access.Principal{}, fmt.Errorf("%w: token has no subject", access.ErrUnauthorized)
	}

	role := access.RoleCustomer
	if claims.Role != "" {
		r, err := access.ParseRole(claims.Role)
		if err != nil {
			return access.Principal{}, fmt.Errorf("%w: %v", access.ErrUnauthorized, err)
		}
		role = r
	}

	granted, err := a.scopes.Scopes(ctx, claims.Subject)
	if err != nil {
		return access.Principal{}, fmt.Errorf("auth: resolve scopes: %w", err)
	}

	return access.Principal{
		UserID: claims.Subject,
		Role:   role,
		Scopes: access.NewScopeSet(granted...),
	}, nil
}

// Issue signs a token for userID. Login lives outside this service; Issue backs the
// `storefront token` development command and tests.
func (a *JWTAuthenticator) Issue(userID string, role access.Role, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
