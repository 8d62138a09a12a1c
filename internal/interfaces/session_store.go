package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/skill-check/internal/models"
)

// SessionStore defines the contract for payment session data access.
// key may be either the internal id or the gateway's external id.
type SessionStore interface {
	Create(ctx context.Context, internalID, externalID string, meta models.SessionMetadata) (*models.PaymentSession, error)
	Get(ctx context.Context, key string) (*models.PaymentSession, error)
	// Transition applies mutate and moves to next only if the status still equals expected.
	Transition(ctx context.Context, key string, expected, next models.SessionStatus, mutate func(*models.PaymentSession)) (bool, error)
	List(ctx context.Context) ([]models.PaymentSession, error)
}

// Gateway is the payment provider boundary.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params models.GatewayCheckoutParams) (*models.GatewayCheckout, error)
	PaymentStatus(ctx context.Context, externalID string) (*models.GatewayPaymentStatus, error)
}

type UnlockTokenStore interface {
	SaveUnlockToken(ctx context.Context, sessionID, token string, ttl time.Duration) error
	UnlockToken(ctx context.Context, sessionID string) (string, error)
}
