package httppresentation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apporder "github.com/Zhima-Mochi/minishop-storefront/internal/application/order"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
)

// headerReplayed marks a response that returns an order created by an earlier delivery of the
// same payment confirmation.
const headerReplayed = "Idempotent-Replayed"

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err)
		return
	}
	actor, _ := access.PrincipalFrom(r.Context())

	items := make([]apporder.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, apporder.CartLine{ProductID: it.ProductID, Variant: it.Size, Quantity: it.Quantity})
	}
	res, err := h.svc.PlaceOrder.Execute(r.Context(), apporder.PlaceOrderInput{
		UserID: actor.UserID,
		Items:  items,
		Shipping: domorder.Address{
			Name:       req.Shipping.Name,
			Line1:      req.Shipping.Line1,
			Line2:      req.Shipping.Line2,
			City:       req.Shipping.City,
			State:      req.Shipping.State,
			PostalCode: req.Shipping.PostalCode,
			Country:    req.Shipping.Country,
			Phone:      req.Shipping.Phone,
		},
		Confirmation: dompay.Confirmation{
			PaymentID:      req.Payment.PaymentID,
			GatewayOrderID: req.Payment.GatewayOrderID,
			Signature:      req.Payment.Signature,
		},
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set(headerReplayed, "true")
		status = http.StatusOK
	}
	writeJSON(w, status, toOrderResponse(res.Order))
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

func (h *Handler) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Orders.ListMine(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := orderListResponse{Orders: make([]orderResponse, 0, len(orders))}
	for _, o := range orders {
		out.Orders = append(out.Orders, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type transitionOrderResponse struct {
	Order orderResponse `json:"order"`
	From  string        `json:"from"`
}

func (h *Handler) handleTransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionOrderRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err)
		return
	}
	res, err := h.svc.TransitionOrder.Execute(r.Context(), apporder.TransitionOrderInput{
		OrderID: chi.URLParam(r, "id"),
		Action:  req.Action,
		Status:  req.Status,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionOrderResponse{Order: toOrderResponse(res.Order), From: string(res.From)})
}
