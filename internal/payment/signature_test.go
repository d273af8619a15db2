package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSignature(t *testing.T) {
	t.Run("deterministic for identical inputs", func(t *testing.T) {
		a := ComputeSignature("secret", "order_1", "pay_1")
		b := ComputeSignature("secret", "order_1", "pay_1")
		assert.Equal(t, a, b)
		assert.Len(t, a, 64) // hex-encoded sha256
	})

	t.Run("whitespace around ids is ignored", func(t *testing.T) {
		a := ComputeSignature("secret", "order_1", "pay_1")
		b := ComputeSignature("secret", "  order_1 ", " pay_1  ")
		assert.Equal(t, a, b)
	})

	t.Run("any input change flips the signature", func(t *testing.T) {
		base := ComputeSignature("secret", "order_1", "pay_1")
		assert.NotEqual(t, base, ComputeSignature("other", "order_1", "pay_1"))
		assert.NotEqual(t, base, ComputeSignature("secret", "order_2", "pay_1"))
		assert.NotEqual(t, base, ComputeSignature("secret", "order_1", "pay_2"))
	})
}

func TestProofVerify(t *testing.T) {
	t.Run("valid proof passes", func(t *testing.T) {
		p := Proof{
			OrderID:   "order_1",
			PaymentID: "pay_1",
			Signature: ComputeSignature("secret", "order_1", "pay_1"),
		}
		assert.NoError(t, p.Verify("secret"))
	})

	t.Run("tampered signature fails", func(t *testing.T) {
		p := Proof{
			OrderID:   "order_1",
			PaymentID: "pay_1",
			Signature: ComputeSignature("secret", "order_1", "pay_2"),
		}
		assert.ErrorIs(t, p.Verify("secret"), ErrInvalidSignature)
	})

	t.Run("empty proof fails", func(t *testing.T) {
		assert.ErrorIs(t, Proof{}.Verify("secret"), ErrInvalidSignature)
	})
}
