package payment

import (
	"context"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a positive number")
	ErrUnsupportedCurrency = errors.New("only INR orders are supported")
)

// Order is the gateway order handle returned to a caller so it can run the
// payment flow before finalizing.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Gateway creates payment orders. Signature verification deliberately does
// not go through here; see Proof.Verify.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error)
}

type razorpayGateway struct {
	client *razorpay.Client
}

func NewRazorpayGateway(keyID, keySecret string) Gateway {
	return &razorpayGateway{client: razorpay.NewClient(keyID, keySecret)}
}

// CreateOrder registers an order for the given amount in rupees. Razorpay
// wants paise, hence the *100; that conversion only holds for two-decimal
// currencies, so anything other than INR is rejected rather than mispriced.
func (g *razorpayGateway) CreateOrder(_ context.Context, amount int64, currency string) (*Order, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if currency == "" {
		currency = "INR"
	}
	if currency != "INR" {
		return nil, ErrUnsupportedCurrency
	}

	body := map[string]interface{}{
		"amount":   amount * 100,
		"currency": currency,
	}

	resp, err := g.client.Order.Create(body, nil)
	if err != nil {
		return nil, fmt.Errorf("create razorpay order: %w", err)
	}

	order := &Order{Amount: amount * 100, Currency: currency}
	if id, ok := resp["id"].(string); ok {
		order.ID = id
	}
	if c, ok := resp["currency"].(string); ok {
		order.Currency = c
	}
	return order, nil
}
