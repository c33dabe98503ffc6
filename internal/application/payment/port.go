package payment

import (
	"context"

	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
)

// OrderLookup is the slice of the order repository the gate needs to detect a consumed
// confirmation.
type OrderLookup interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*domorder.Order, error)
}
