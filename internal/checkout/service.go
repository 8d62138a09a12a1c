package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/interfaces"
	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

type Service struct {
	gateway interfaces.Gateway
	store   interfaces.SessionStore
	logger  *zap.Logger
	newID   func() string
}

func NewService(gateway interfaces.Gateway, store interfaces.SessionStore, logger *zap.Logger) *Service {
	return &Service{
		gateway: gateway,
		store:   store,
		logger:  logger,
		newID:   func() string { return uuid.New().String() },
	}
}

// Start opens a gateway checkout and records the pending session under both its
// internal id and the gateway's session id.
func (s *Service) Start(ctx context.Context, req models.CreateCheckoutRequest) (*models.CheckoutResponse, error) {
	uniqueID := s.newID()
	userID := req.UserID
	if userID == "" {
		userID = s.newID()
	}

	checkout, err := s.gateway.CreateCheckoutSession(ctx, models.GatewayCheckoutParams{
		UniqueID:      uniqueID,
		UserID:        userID,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway checkout: %w", err)
	}

	session, err := s.store.Create(ctx, uniqueID, checkout.ExternalID, models.SessionMetadata{
		CustomerEmail: req.CustomerEmail,
		UserID:        userID,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	telemetry.SessionsCreated.Inc()

	s.logger.Info("Payment session created",
		zap.String("session_id", session.ID),
		zap.String("external_id", session.ExternalID),
	)

	return &models.CheckoutResponse{
		ID:       session.ExternalID,
		UniqueID: session.ID,
		URL:      checkout.URL,
	}, nil
}
