package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	g := NewRazorpayGateway("rzp_test_key", "rzp_test_secret")

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := g.CreateOrder(ctx, 0, "INR")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = g.CreateOrder(ctx, -499, "INR")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects currencies the paise conversion does not hold for", func(t *testing.T) {
		_, err := g.CreateOrder(ctx, 499, "USD")
		assert.ErrorIs(t, err, ErrUnsupportedCurrency)

		_, err = g.CreateOrder(ctx, 499, "JPY")
		assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	})
}
