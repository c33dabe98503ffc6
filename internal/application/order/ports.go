package order

import (
	"context"

	appinv "github.com/Zhima-Mochi/minishop-storefront/internal/application/inventory"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
)

// StockPort reserves and releases stock for order lines.
type StockPort interface {
	Reserve(ctx context.Context, lines []appinv.Line) error
	Release(ctx context.Context, action string, lines []appinv.Line) error
}

// PaymentGate verifies confirmations and finds the order a confirmation already produced.
type PaymentGate interface {
	Verify(ctx context.Context, c dompay.Confirmation) error
	Consumed(ctx context.Context, paymentID string) (*domorder.Order, bool, error)
}
