package httppresentation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appinv "github.com/Zhima-Mochi/minishop-storefront/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
)

type scopesResponse struct {
	UserID  string   `json:"userId"`
	Modules []string `json:"modules"`
}

func toScopesResponse(userID string, scopes []access.Scope) scopesResponse {
	out := scopesResponse{UserID: userID, Modules: make([]string, 0, len(scopes))}
	for _, s := range scopes {
		out.Modules = append(out.Modules, string(s))
	}
	return out
}

func (h *Handler) handleAssignableScopes(w http.ResponseWriter, r *http.Request) {
	scopes, err := h.svc.Scopes.Assignable(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, string(s))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"modules": out})
}

type adjustStockResponse struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Previous  int    `json:"previous"`
	Available int    `json:"available"`
}

func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err)
		return
	}
	res, err := h.svc.AdjustStock.Execute(r.Context(), appinv.AdjustStockInput{
		ProductID: chi.URLParam(r, "id"),
		Variant:   chi.URLParam(r, "size"),
		Quantity:  *req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adjustStockResponse{
		ProductID: res.Key.ProductID,
		Size:      res.Key.Variant,
		Previous:  res.Previous,
		Available: res.Quantity,
	})
}

func (h *Handler) handleGetScopes(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	scopes, err := h.svc.Scopes.Get(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScopesResponse(userID, scopes))
}

func (h *Handler) handleReplaceScopes(w http.ResponseWriter, r *http.Request) {
	var req replaceScopesRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err)
		return
	}
	userID := chi.URLParam(r, "id")
	scopes, err := h.svc.Scopes.Replace(r.Context(), userID, req.Modules)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScopesResponse(userID, scopes))
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domaudit.Filter{
		TargetType:    q.Get("targetType"),
		TargetID:      q.Get("targetId"),
		CorrelationID: q.Get("correlationId"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, KindValidation, errors.New("limit must be a non-negative integer"))
			return
		}
		f.Limit = n
	}

	actor, _ := access.PrincipalFrom(r.Context())
	entries, err := h.svc.Audit.List(r.Context(), actor, f)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domaudit.Entry{}
	}
	writeJSON(w, http.StatusOK, auditListResponse{Entries: entries})
}
