package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier authenticates Stripe webhook deliveries with the endpoint signing secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the Stripe-Signature header against payload and decodes the event.
// Any verification problem, including a missing header, is ErrInvalidSignature.
func (v *Verifier) Verify(payload []byte, signature string) (Event, error) {
	if v.secret == "" || signature == "" {
		return nil, ErrInvalidSignature
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return decode(evt), nil
}

func decode(evt stripe.Event) Event {
	var raw json.RawMessage
	if evt.Data != nil {
		raw = evt.Data.Raw
	}

	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(raw, &s); err != nil || s.ID == "" {
			return unhandled(evt, "undecodable checkout session")
		}
		email := s.CustomerEmail
		if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
			email = s.CustomerDetails.Email
		}
		return CheckoutCompleted{
			EventID:       evt.ID,
			ExternalID:    s.ID,
			CustomerEmail: email,
			AmountTotal:   s.AmountTotal,
			Currency:      string(s.Currency),
		}

	case stripe.EventTypeCheckoutSessionExpired:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(raw, &s); err != nil || s.ID == "" {
			return unhandled(evt, "undecodable checkout session")
		}
		return CheckoutExpired{EventID: evt.ID, ExternalID: s.ID}

	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return unhandled(evt, "undecodable payment intent")
		}
		return PaymentSucceeded{EventID: evt.ID, PaymentIntentID: pi.ID}

	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return unhandled(evt, "undecodable payment intent")
		}
		failed := PaymentFailed{EventID: evt.ID, PaymentIntentID: pi.ID}
		if pi.LastPaymentError != nil {
			failed.FailureMessage = pi.LastPaymentError.Msg
		}
		return failed
	}

	return unhandled(evt, "unsupported event type")
}

func unhandled(evt stripe.Event, reason string) Unhandled {
	return Unhandled{EventID: evt.ID, EventType: string(evt.Type), Reason: reason}
}
