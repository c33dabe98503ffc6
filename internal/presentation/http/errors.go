package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	domreturns "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
)

// Error kinds are the machine-readable half of every error body.
const (
	KindLockBusy          = "LOCK_BUSY"
	KindOutOfStock        = "OUT_OF_STOCK"
	KindPaymentInvalid    = "PAYMENT_INVALID"
	KindInvalidTransition = "INVALID_TRANSITION"
	KindValidation        = "VALIDATION_FAILED"
	KindUnauthorized      = "UNAUTHORIZED"
	KindForbidden         = "FORBIDDEN"
	KindNotFound          = "NOT_FOUND"
	KindConflict          = "CONFLICT"
	KindInternal          = "INTERNAL"
)

type errorBody struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// classify maps an error chain to its kind and status. Order matters: a validation error may
// wrap a domain sentinel and must still surface as a validation failure.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, dominv.ErrInvalidQuantity),
		errors.Is(err, dominv.ErrInvalidKey):
		return KindValidation, http.StatusBadRequest
	case errors.Is(err, lock.ErrLockBusy):
		return KindLockBusy, http.StatusTooManyRequests
	case errors.Is(err, dominv.ErrOutOfStock):
		return KindOutOfStock, http.StatusConflict
	case errors.Is(err, dompay.ErrPaymentInvalid):
		return KindPaymentInvalid, http.StatusPaymentRequired
	case errors.Is(err, domorder.ErrInvalidTransition),
		errors.Is(err, domreturns.ErrInvalidTransition):
		return KindInvalidTransition, http.StatusBadRequest
	case errors.Is(err, access.ErrUnauthorized):
		return KindUnauthorized, http.StatusUnauthorized
	case errors.Is(err, access.ErrForbidden):
		return KindForbidden, http.StatusForbidden
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domreturns.ErrNotFound):
		return KindNotFound, http.StatusNotFound
	case errors.Is(err, domorder.ErrConflict),
		errors.Is(err, domreturns.ErrConflict),
		errors.Is(err, domreturns.ErrOrderNotReturnable),
		errors.Is(err, domreturns.ErrExceedsReturnable):
		return KindConflict, http.StatusConflict
	default:
		return KindInternal, http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logctx.FromOr(r.Context(), h.log).Error("http_request_failed",
			observability.F("kind", kind),
			observability.F("error", err),
		)
		// Internal details stay in the log.
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Kind: kind, Error: msg})
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorBody{Kind: kind, Error: err.Error()})
}

