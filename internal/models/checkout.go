package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type CreateCheckoutRequest struct {
	CustomerEmail string `json:"customerEmail" binding:"omitempty,email"`
	UserID        string `json:"userId"`
}

// UnmarshalJSON also accepts the snake_case keys older clients send.
func (r *CreateCheckoutRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		CustomerEmail      string `json:"customerEmail"`
		UserID             string `json:"userId"`
		CustomerEmailSnake string `json:"customer_email"`
		UserIDSnake        string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.CustomerEmail = raw.CustomerEmail
	if r.CustomerEmail == "" {
		r.CustomerEmail = raw.CustomerEmailSnake
	}
	r.UserID = raw.UserID
	if r.UserID == "" {
		r.UserID = raw.UserIDSnake
	}
	return nil
}

type CheckoutResponse struct {
	ID       string `json:"id"`
	UniqueID string `json:"uniqueId"`
	URL      string `json:"url,omitempty"`
}

// GatewayCheckoutParams is what the gateway needs to open a hosted checkout page.
type GatewayCheckoutParams struct {
	UniqueID      string
	UserID        string
	CustomerEmail string
}

type GatewayCheckout struct {
	ExternalID string
	URL        string
}

// GatewayPaymentStatus is the gateway's authoritative view of a checkout session.
type GatewayPaymentStatus struct {
	Paid          bool
	CustomerEmail string
}

// Product is the single item sold at checkout.
type Product struct {
	PriceID  string
	Amount   decimal.Decimal
	Currency string
	Type     string
}
