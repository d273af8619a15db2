package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/careslot/careslot/internal/payment"
)

func checkoutHandler(gateway payment.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		order, err := gateway.CreateOrder(r.Context(), req.Amount, req.Currency)
		if err != nil {
			if errors.Is(err, payment.ErrInvalidAmount) {
				writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
				return
			}
			if errors.Is(err, payment.ErrUnsupportedCurrency) {
				writeError(w, http.StatusBadRequest, "unsupported_currency", err.Error())
				return
			}
			writeError(w, http.StatusBadGateway, "gateway_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}
