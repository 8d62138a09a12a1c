package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/finalize"
	"github.com/akylbek/payment-system/skill-check/internal/interfaces"
	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Poller asks the gateway directly whether a still-pending session has been
// paid, covering for a webhook that has not arrived yet.
type Poller struct {
	gateway   interfaces.Gateway
	finalizer *finalize.Finalizer
	logger    *zap.Logger
	timeout   time.Duration
}

func NewPoller(gateway interfaces.Gateway, finalizer *finalize.Finalizer, logger *zap.Logger, timeout time.Duration) *Poller {
	return &Poller{gateway: gateway, finalizer: finalizer, logger: logger, timeout: timeout}
}

func (p *Poller) Reconcile(ctx context.Context, session *models.PaymentSession) error {
	if session.Status != models.StatusPending {
		return nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	status, err := p.gateway.PaymentStatus(ctx, session.ExternalID)
	if err != nil {
		telemetry.Reconciliations.WithLabelValues("gateway_error").Inc()
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if !status.Paid {
		telemetry.Reconciliations.WithLabelValues("unpaid").Inc()
		return nil
	}

	won, err := p.finalizer.Finalize(ctx, finalize.Request{
		Key:           session.ID,
		Source:        finalize.SourceReconciliation,
		CustomerEmail: status.CustomerEmail,
	})
	if err != nil {
		telemetry.Reconciliations.WithLabelValues("error").Inc()
		return err
	}

	result := "lost_race"
	if won {
		result = "claimed"
		p.logger.Info("Payment confirmed by reconciliation before webhook",
			zap.String("session_id", session.ID),
			zap.String("external_id", session.ExternalID),
		)
	}
	telemetry.Reconciliations.WithLabelValues(result).Inc()
	return nil
}
