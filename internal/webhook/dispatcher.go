package webhook

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/finalize"
	"github.com/akylbek/payment-system/skill-check/internal/interfaces"
	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

// Dispatcher applies verified events to the session state machine. It never
// fails: the gateway gets an acknowledgement for everything that passed
// signature verification, and problems are logged here instead.
type Dispatcher struct {
	store     interfaces.SessionStore
	finalizer *finalize.Finalizer
	logger    *zap.Logger
}

func NewDispatcher(store interfaces.SessionStore, finalizer *finalize.Finalizer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, finalizer: finalizer, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	telemetry.WebhookEvents.WithLabelValues(event.Type()).Inc()

	switch e := event.(type) {
	case CheckoutCompleted:
		d.handleCheckoutCompleted(ctx, e)
	case CheckoutExpired:
		d.handleCheckoutExpired(ctx, e)
	case PaymentSucceeded:
		d.logger.Info("Payment intent succeeded",
			zap.String("event_id", e.EventID),
			zap.String("payment_intent_id", e.PaymentIntentID),
		)
	case PaymentFailed:
		d.logger.Warn("Payment intent failed",
			zap.String("event_id", e.EventID),
			zap.String("payment_intent_id", e.PaymentIntentID),
			zap.String("reason", e.FailureMessage),
		)
	default:
		d.logger.Info("Unhandled webhook event",
			zap.String("event_id", event.ID()),
			zap.String("event_type", event.Type()),
		)
	}
}

func (d *Dispatcher) handleCheckoutCompleted(ctx context.Context, e CheckoutCompleted) {
	d.logger.Info("Checkout completed",
		zap.String("event_id", e.EventID),
		zap.String("external_id", e.ExternalID),
	)

	if !d.known(ctx, e.ExternalID) {
		return
	}

	_, err := d.finalizer.Finalize(ctx, finalize.Request{
		Key:           e.ExternalID,
		Source:        finalize.SourceWebhook,
		CustomerEmail: e.CustomerEmail,
	})
	if err != nil {
		d.logger.Error("Failed to finalize session from webhook",
			zap.String("external_id", e.ExternalID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) handleCheckoutExpired(ctx context.Context, e CheckoutExpired) {
	d.logger.Info("Checkout expired",
		zap.String("event_id", e.EventID),
		zap.String("external_id", e.ExternalID),
	)

	if !d.known(ctx, e.ExternalID) {
		return
	}

	applied, err := d.store.Transition(ctx, e.ExternalID, models.StatusPending, models.StatusExpired, nil)
	if err != nil {
		d.logger.Error("Failed to expire session",
			zap.String("external_id", e.ExternalID),
			zap.Error(err),
		)
		return
	}
	if !applied {
		d.logger.Info("Session already advanced, ignoring expiry",
			zap.String("external_id", e.ExternalID),
		)
	}
}

func (d *Dispatcher) known(ctx context.Context, externalID string) bool {
	_, err := d.store.Get(ctx, externalID)
	if errors.Is(err, models.ErrNotFound) {
		d.logger.Warn("Webhook for unknown session",
			zap.String("external_id", externalID),
		)
		return false
	}
	if err != nil {
		d.logger.Error("Failed to look up session",
			zap.String("external_id", externalID),
			zap.Error(err),
		)
		return false
	}
	return true
}
