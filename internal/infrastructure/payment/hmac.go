package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	dompay "github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
)

var errEmptySecret = errors.New("payment: hmac secret is empty")

// HMACVerifier checks gateway signatures of the form
// hex(HMAC-SHA256(secret, gatewayOrderID + "|" + paymentID)).
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

func (v *HMACVerifier) Verify(ctx context.Context, c dompay.Confirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	got, err := hex.DecodeString(strings.TrimSpace(c.Signature))
	if err != nil {
		return dompay.ErrPaymentInvalid
	}
	if !hmac.Equal(got, v.sum(c.GatewayOrderID, c.PaymentID)) {
		return dompay.ErrPaymentInvalid
	}
	return nil
}

// Sign produces the signature a gateway would send. Used by tests and local tooling.
func (v *HMACVerifier) Sign(gatewayOrderID, paymentID string) string {
	return hex.EncodeToString(v.sum(gatewayOrderID, paymentID))
}

func (v *HMACVerifier) sum(gatewayOrderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return mac.Sum(nil)
}
