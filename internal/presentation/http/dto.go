package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domreturns "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
)

const maxBodyBytes = 1 << 20

type cartLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=100"`
}

type addressRequest struct {
	Name       string `json:"name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
	Phone      string `json:"phone" validate:"omitempty,e164"`
}

type paymentRequest struct {
	PaymentID      string `json:"paymentId" validate:"required"`
	GatewayOrderID string `json:"gatewayOrderId" validate:"required"`
	Signature      string `json:"signature" validate:"required,hexadecimal"`
}

type placeOrderRequest struct {
	Items    []cartLineRequest `json:"items" validate:"required,min=1,dive"`
	Shipping addressRequest    `json:"shippingAddress"`
	Payment  paymentRequest    `json:"payment"`
}

type transitionOrderRequest struct {
	Action string `json:"action" validate:"required_without=Status"`
	Status string `json:"status" validate:"required_without=Action"`
}

type returnItemRequest struct {
	LineItemID string `json:"lineItemId" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
	Reason     string `json:"reason" validate:"required,max=500"`
	Condition  string `json:"condition" validate:"required,oneof=unopened used damaged defective"`
}

type createReturnRequest struct {
	OrderID string              `json:"orderId" validate:"required"`
	Items   []returnItemRequest `json:"items" validate:"required,min=1,dive"`
}

type qcRequest struct {
	ReturnRequestID string `json:"returnRequestId" validate:"required"`
	Status          string `json:"status" validate:"required"`
	Notes           string `json:"notes" validate:"max=2000"`
	RejectionReason string `json:"rejectionReason" validate:"max=2000"`
}

type adjustStockRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type replaceScopesRequest struct {
	Modules []string `json:"modules" validate:"required,dive,required"`
}

type lineItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Status    string `json:"status"`
}

type orderResponse struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Status    string             `json:"orderStatus"`
	PaymentID string             `json:"paymentId"`
	Items     []lineItemResponse `json:"items"`
	Shipping  domorder.Address   `json:"shippingAddress"`
	Totals    domorder.Totals    `json:"totals"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, lineItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Size:      it.Variant,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Status:    string(it.Status),
		})
	}
	return orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    string(o.Status),
		PaymentID: o.PaymentID,
		Items:     items,
		Shipping:  o.Shipping,
		Totals:    o.Totals,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

type returnResponse struct {
	ID              string            `json:"id"`
	OrderID         string            `json:"orderId"`
	UserID          string            `json:"userId"`
	Status          string            `json:"status"`
	RefundAmount    int64             `json:"refundAmount"`
	Items           []domreturns.Item `json:"items"`
	QCNotes         string            `json:"qcNotes,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func toReturnResponse(r *domreturns.Request) returnResponse {
	return returnResponse{
		ID:              r.ID,
		OrderID:         r.OrderID,
		UserID:          r.UserID,
		Status:          string(r.Status),
		RefundAmount:    r.RefundAmount,
		Items:           r.Items,
		QCNotes:         r.QCNotes,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type auditListResponse struct {
	Entries []domaudit.Entry `json:"entries"`
}

// decodeJSON reads one JSON document into dst and validates its struct tags.
func (h *Handler) decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return describeValidation(err)
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
