package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid payment signature")

// Proof is the payment evidence a caller presents to a finalize step. The
// signature is the gateway's HMAC over "orderID|paymentID".
type Proof struct {
	OrderID   string
	PaymentID string
	Signature string
}

// ComputeSignature derives the expected hex signature for an order/payment
// pair. This is the only trust boundary with the payment gateway.
func ComputeSignature(secret, orderID, paymentID string) string {
	body := strings.TrimSpace(orderID) + "|" + strings.TrimSpace(paymentID)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it against the
// caller-supplied one. Returns ErrInvalidSignature on any mismatch.
func (p Proof) Verify(secret string) error {
	expected := ComputeSignature(secret, p.OrderID, p.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(p.Signature)) {
		return ErrInvalidSignature
	}
	return nil
}
