package httppresentation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appreturns "github.com/Zhima-Mochi/minishop-storefront/internal/application/returns"
)

func (h *Handler) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err)
		return
	}
	items := make([]appreturns.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, appreturns.ItemInput{
			LineItemID: it.LineItemID,
			Quantity:   it.Quantity,
			Reason:     it.Reason,
			Condition:  it.Condition,
		})
	}
	created, err := h.svc.CreateReturn.Execute(r.Context(), appreturns.CreateReturnInput{
		OrderID: req.OrderID,
		Items:   items,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReturnResponse(created))
}

func (h *Handler) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Returns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReturnResponse(req))
}

type qcResponse struct {
	Return returnResponse `json:"returnRequest"`
	From   string         `json:"from"`
}

// handleQC applies one return transition. Notes and rejection reason are checked again by the
// use case for the target status.
func (h *Handler) handleQC(w http.ResponseWriter, r *http.Request) {
	var req qcRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err)
		return
	}
	res, err := h.svc.TransitionReturn.Execute(r.Context(), appreturns.TransitionReturnInput{
		ReturnID:        req.ReturnRequestID,
		Status:          req.Status,
		Notes:           req.Notes,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qcResponse{Return: toReturnResponse(res.Request), From: string(res.From)})
}
