package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
)

const (
	paymentService   = "payment-service"
	verifierPeer     = "payment-gateway"
	verifierEndpoint = "verify"
	verifyTimeout    = 3 * time.Second
)

// Gate admits a checkout only with a verified confirmation and reports when that
// confirmation already produced an order.
type Gate struct {
	verifier dompay.Verifier
	orders   OrderLookup
	in       application.Instruments
}

func NewGate(verifier dompay.Verifier, orders OrderLookup, tel observability.Observability) *Gate {
	return &Gate{
		verifier: verifier,
		orders:   orders,
		in:       application.NewInstruments(tel, paymentService),
	}
}

// Verify checks the proof. Bad or missing proofs yield dompay.ErrPaymentInvalid; other errors
// mean the verifier itself failed.
func (g *Gate) Verify(ctx context.Context, c dompay.Confirmation) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", dompay.ErrPaymentInvalid, err)
	}

	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	start := time.Now()
	err := g.verifier.Verify(vctx, c)
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, dompay.ErrPaymentInvalid):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	g.in.External(verifierPeer, verifierEndpoint, outcome, start)

	if err != nil {
		logctx.FromOr(ctx, g.in.Logger()).Warn("payment_verification_failed",
			observability.F("payment_id", c.PaymentID),
			observability.F("outcome", outcome),
			observability.F("error", err),
		)
		if errors.Is(err, dompay.ErrPaymentInvalid) {
			return err
		}
		return fmt.Errorf("payment: verifier: %w", err)
	}
	return nil
}

// Consumed returns the order already created with paymentID, if any.
func (g *Gate) Consumed(ctx context.Context, paymentID string) (*domorder.Order, bool, error) {
	o, err := g.orders.FindByPaymentID(ctx, paymentID)
	switch {
	case err == nil:
		return o, true, nil
	case errors.Is(err, domorder.ErrNotFound):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("payment: lookup by payment id: %w", err)
	}
}
