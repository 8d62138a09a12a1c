package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/akylbek/payment-system/skill-check/internal/models"
)

// StripeGateway creates hosted checkout sessions and reads their payment status.
type StripeGateway struct {
	api     *client.API
	product models.Product
	baseURL string
}

func NewStripeGateway(secretKey string, product models.Product, baseURL string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, product: product, baseURL: baseURL}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p models.GatewayCheckoutParams) (*models.GatewayCheckout, error) {
	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(g.product.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(SuccessURL(g.baseURL, p.UniqueID)),
		CancelURL:  stripe.String(g.baseURL + "/cancel.html"),
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.AddMetadata("unique_id", p.UniqueID)
	params.AddMetadata("user_id", p.UserID)
	params.AddMetadata("product_type", g.product.Type)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, describe(err)
	}

	return &models.GatewayCheckout{ExternalID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) PaymentStatus(ctx context.Context, externalID string) (*models.GatewayPaymentStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(externalID, params)
	if err != nil {
		return nil, describe(err)
	}

	status := &models.GatewayPaymentStatus{
		Paid: s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if s.CustomerDetails != nil {
		status.CustomerEmail = s.CustomerDetails.Email
	}
	return status, nil
}

// SuccessURL is where the gateway sends the buyer back; the gateway fills in
// the checkout session id placeholder.
func SuccessURL(baseURL, uniqueID string) string {
	return fmt.Sprintf("%s/result?session_id={CHECKOUT_SESSION_ID}&unique_id=%s", baseURL, uniqueID)
}

func describe(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe %s (%s): %w", stripeErr.Type, stripeErr.Code, err)
	}
	return err
}
