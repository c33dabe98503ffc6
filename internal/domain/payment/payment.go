package payment

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrPaymentInvalid = errors.New("payment: confirmation could not be verified")
	ErrMissingProof   = errors.New("payment: payment id, gateway order id and signature are required")
)

// Confirmation is what the gateway hands back after the customer pays: the payment id and
// a proof binding it to the gateway-side order.
type Confirmation struct {
	PaymentID      string
	GatewayOrderID string
	Signature      string
}

func (c Confirmation) Validate() error {
	if strings.TrimSpace(c.PaymentID) == "" ||
		strings.TrimSpace(c.GatewayOrderID) == "" ||
		strings.TrimSpace(c.Signature) == "" {
		return ErrMissingProof
	}
	return nil
}

// Verifier checks a confirmation proof. It returns ErrPaymentInvalid for a bad proof and
// any other error for infrastructure failures.
type Verifier interface {
	Verify(ctx context.Context, c Confirmation) error
}
