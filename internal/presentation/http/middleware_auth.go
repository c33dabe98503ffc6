package httppresentation

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
)

// Authenticator resolves a bearer credential to a principal with its role and scope set.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (access.Principal, error)
}

// requireAuth rejects requests without a valid bearer token and puts the principal on the
// context for the use cases.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, KindUnauthorized, errors.New("bearer token required"))
			return
		}
		p, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}

		ctx := access.WithPrincipal(r.Context(), p)
		ctx, _ = logctx.Enrich(ctx, h.log,
			observability.F("user_id", p.UserID),
			observability.F("role", string(p.Role)),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
